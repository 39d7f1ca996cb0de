package playlist_test

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/fablebox/fablebox/internal/domain/playback"
	"github.com/fablebox/fablebox/internal/domain/playlist"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestBuildDirectorySortedFiltersAndOrders(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "b.mp3", "a.flac", "c.wav", "notes.txt", ".hidden.mp3", "Cover.JPG")
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	tracks, err := playlist.Build(dir, playback.AllTracksOfDirSorted)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{
		filepath.Join(dir, "a.flac"),
		filepath.Join(dir, "b.mp3"),
		filepath.Join(dir, "c.wav"),
	}
	if len(tracks) != len(want) {
		t.Fatalf("expected %d tracks, got %v", len(want), tracks)
	}
	for i := range want {
		if tracks[i] != want[i] {
			t.Errorf("track %d: expected %q, got %q", i, want[i], tracks[i])
		}
	}
}

func TestBuildRandomKeepsTrackSet(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "1.mp3", "2.mp3", "3.mp3", "4.mp3", "5.mp3")

	tracks, err := playlist.Build(dir, playback.AllTracksOfDirRandom)
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 5 {
		t.Fatalf("expected 5 tracks, got %d", len(tracks))
	}

	sorted := append([]string(nil), tracks...)
	sort.Strings(sorted)
	for i, p := range sorted {
		if filepath.Base(p) != []string{"1.mp3", "2.mp3", "3.mp3", "4.mp3", "5.mp3"}[i] {
			t.Fatalf("unexpected track set %v", tracks)
		}
	}
}

func TestBuildSingleFile(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "story.mp3")
	file := filepath.Join(dir, "story.mp3")

	tracks, err := playlist.Build(file, playback.SingleTrack)
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 1 || tracks[0] != file {
		t.Errorf("expected single-entry playlist, got %v", tracks)
	}
}

func TestBuildWebstreamPassesURLThrough(t *testing.T) {
	tracks, err := playlist.Build("http://radio.example/stream", playback.Webstream)
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 1 || tracks[0] != "http://radio.example/stream" {
		t.Errorf("expected URL passthrough, got %v", tracks)
	}
}

func TestBuildMissingTarget(t *testing.T) {
	_, err := playlist.Build(filepath.Join(t.TempDir(), "nope"), playback.AllTracksOfDirSorted)
	if !errors.Is(err, playlist.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestBuildEmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "readme.txt")

	_, err := playlist.Build(dir, playback.AllTracksOfDirSorted)
	if !errors.Is(err, playlist.ErrEmpty) {
		t.Errorf("expected ErrEmpty, got %v", err)
	}
}

func TestBuildWritesAndReusesCache(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "01.mp3", "02.mp3")

	tracks, err := playlist.Build(dir, playback.Audiobook)
	if err != nil {
		t.Fatal(err)
	}

	cached, ok := playlist.ReadCache(dir)
	if !ok {
		t.Fatal("expected a cache file after a sorted build")
	}
	if len(cached) != len(tracks) {
		t.Fatalf("cache mismatch: %v vs %v", cached, tracks)
	}
	for i := range tracks {
		if cached[i] != tracks[i] {
			t.Errorf("cache entry %d: expected %q, got %q", i, tracks[i], cached[i])
		}
	}
}

func TestCacheDiscardedWhenEntryMissing(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "01.mp3", "02.mp3")

	if _, err := playlist.Build(dir, playback.Audiobook); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(dir, "02.mp3")); err != nil {
		t.Fatal(err)
	}

	if _, ok := playlist.ReadCache(dir); ok {
		t.Error("expected stale cache to be discarded")
	}
}

func TestInvalidateCacheRemovesFile(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "01.mp3")

	if _, err := playlist.Build(dir, playback.Audiobook); err != nil {
		t.Fatal(err)
	}
	if err := playlist.InvalidateCache(dir); err != nil {
		t.Fatal(err)
	}
	if _, ok := playlist.ReadCache(dir); ok {
		t.Error("expected cache to be gone after invalidation")
	}

	// Invalidating again must be a no-op.
	if err := playlist.InvalidateCache(dir); err != nil {
		t.Errorf("unexpected error on double invalidation: %v", err)
	}
}

func TestRandomModeDoesNotWriteCache(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "01.mp3", "02.mp3")

	if _, err := playlist.Build(dir, playback.AllTracksOfDirRandom); err != nil {
		t.Fatal(err)
	}
	if _, ok := playlist.ReadCache(dir); ok {
		t.Error("randomized builds must not write the cache")
	}
}

func TestParseM3U(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "local.mp3")
	m3u := filepath.Join(dir, "mix.m3u")
	content := "#EXTM3U\n#EXTINF:123,Some Title\nlocal.mp3\n\nhttp://radio.example/stream\n/abs/path.flac\n"
	if err := os.WriteFile(m3u, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	tracks, err := playlist.ParseM3U(m3u)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{
		filepath.Join(dir, "local.mp3"),
		"http://radio.example/stream",
		"/abs/path.flac",
	}
	if len(tracks) != len(want) {
		t.Fatalf("expected %d entries, got %v", len(want), tracks)
	}
	for i := range want {
		if tracks[i] != want[i] {
			t.Errorf("entry %d: expected %q, got %q", i, want[i], tracks[i])
		}
	}
}

func TestParseM3UEmpty(t *testing.T) {
	m3u := filepath.Join(t.TempDir(), "empty.m3u")
	if err := os.WriteFile(m3u, []byte("#EXTM3U\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := playlist.ParseM3U(m3u)
	if !errors.Is(err, playlist.ErrEmpty) {
		t.Errorf("expected ErrEmpty, got %v", err)
	}
}

func TestPickRandomSubdirectory(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"alpha", "beta", ".hidden"} {
		if err := os.Mkdir(filepath.Join(root, name), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	writeFiles(t, root, "stray.mp3")

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		dir, err := playlist.PickRandomSubdirectory(root)
		if err != nil {
			t.Fatal(err)
		}
		seen[filepath.Base(dir)] = true
	}

	if seen[".hidden"] {
		t.Error("hidden directories must not be picked")
	}
	if !seen["alpha"] || !seen["beta"] {
		t.Errorf("expected both subdirectories over 50 picks, got %v", seen)
	}
}

func TestPickRandomSubdirectoryNoCandidates(t *testing.T) {
	_, err := playlist.PickRandomSubdirectory(t.TempDir())
	if !errors.Is(err, playlist.ErrEmpty) {
		t.Errorf("expected ErrEmpty, got %v", err)
	}
}

func TestIsPlayable(t *testing.T) {
	tests := []struct {
		name     string
		playable bool
	}{
		{"track.mp3", true},
		{"TRACK.MP3", true},
		{"a.flac", true},
		{"a.m4a", true},
		{"a.aac", true},
		{"a.wav", true},
		{"a.asx", true},
		{"list.m3u", true},
		{"cover.jpg", false},
		{"noext", false},
		{"a.ogg", false},
	}

	for _, tt := range tests {
		if got := playlist.IsPlayable(tt.name); got != tt.playable {
			t.Errorf("IsPlayable(%q) = %v, expected %v", tt.name, got, tt.playable)
		}
	}
}
