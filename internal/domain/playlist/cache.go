package playlist

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// CacheFileName is the hidden per-directory playlist cache. It stores the
// track basenames in build order, separated by '#', so large sorted
// directories skip the scan-and-sort on subsequent plays.
const CacheFileName = ".playlistcache"

func cachePath(dir string) string {
	return filepath.Join(dir, CacheFileName)
}

// ReadCache loads the cached playlist for dir, returning full paths. The
// second return is false when no usable cache exists, including when any
// cached entry no longer exists on disk.
func ReadCache(dir string) ([]string, bool) {
	raw, err := os.ReadFile(cachePath(dir))
	if err != nil {
		return nil, false
	}

	var tracks []string
	for _, name := range strings.Split(string(raw), "#") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		full := filepath.Join(dir, name)
		if _, err := os.Stat(full); err != nil {
			log.Warn().Str("dir", dir).Str("track", name).Msg("Playlist cache references missing file, discarding cache")
			return nil, false
		}
		tracks = append(tracks, full)
	}
	if len(tracks) == 0 {
		return nil, false
	}
	log.Debug().Str("dir", dir).Int("tracks", len(tracks)).Msg("Playlist restored from cache")
	return tracks, true
}

// WriteCache persists tracks (full paths, build order) as the cache for dir.
func WriteCache(dir string, tracks []string) error {
	names := make([]string, 0, len(tracks))
	for _, t := range tracks {
		names = append(names, filepath.Base(t))
	}
	return os.WriteFile(cachePath(dir), []byte(strings.Join(names, "#")), 0o644)
}

// InvalidateCache removes the cache file for dir if present.
func InvalidateCache(dir string) error {
	err := os.Remove(cachePath(dir))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if err == nil {
		log.Debug().Str("dir", dir).Msg("Playlist cache invalidated")
	}
	return nil
}
