package playlist

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/fablebox/fablebox/internal/domain/playback"
)

// Build resolves target into an ordered track list for the given play mode.
// Webstream targets pass through as single-entry playlists, m3u targets are
// parsed, files become single-entry playlists and directories are scanned.
// Sorted directory modes consult and maintain the per-directory cache.
func Build(target string, mode playback.PlayMode) ([]string, error) {
	switch mode {
	case playback.Webstream:
		return []string{target}, nil
	case playback.LocalM3U:
		return ParseM3U(target)
	}

	info, err := os.Stat(target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if !info.IsDir() {
		if !IsPlayable(info.Name()) {
			return nil, ErrEmpty
		}
		return []string{target}, nil
	}

	if mode.CacheEligible() {
		if tracks, ok := ReadCache(target); ok {
			return tracks, nil
		}
	}

	tracks, err := scanDirectory(target)
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, ErrEmpty
	}

	if mode.Sorted() {
		SortAlphabetic(tracks)
	}
	if mode.CacheEligible() {
		if err := WriteCache(target, tracks); err != nil {
			log.Warn().Err(err).Str("dir", target).Msg("Failed to write playlist cache")
		}
	}
	if mode.Randomized() {
		Shuffle(tracks)
	}

	log.Info().Str("dir", target).Int("tracks", len(tracks)).Msg("Playlist built")
	return tracks, nil
}

// scanDirectory returns the playable entries of dir, non-recursive, in
// directory order. Hidden entries and subdirectories are skipped.
func scanDirectory(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var tracks []string
	for _, e := range entries {
		if e.IsDir() || IsHidden(e.Name()) || !IsPlayable(e.Name()) {
			continue
		}
		tracks = append(tracks, filepath.Join(dir, e.Name()))
	}
	return tracks, nil
}
