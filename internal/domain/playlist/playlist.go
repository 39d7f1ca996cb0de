// Package playlist builds track lists from the music library: directory
// scans, single files, m3u files and webstream URLs, with an optional
// per-directory cache for large sorted directories.
package playlist

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when the requested file or directory does not exist.
	ErrNotFound = errors.New("playlist: target not found")
	// ErrEmpty is returned when a scan or m3u parse yields no playable entries.
	ErrEmpty = errors.New("playlist: no playable entries")
)

// supportedExtensions are the playable file types, lower case with dot.
var supportedExtensions = map[string]struct{}{
	".mp3":  {},
	".aac":  {},
	".m3u":  {},
	".m4a":  {},
	".wav":  {},
	".flac": {},
	".asx":  {},
}

// IsPlayable reports whether name has a supported audio extension.
// The check is case-insensitive.
func IsPlayable(name string) bool {
	idx := strings.LastIndexByte(name, '.')
	if idx < 0 {
		return false
	}
	_, ok := supportedExtensions[strings.ToLower(name[idx:])]
	return ok
}

// IsHidden reports whether a directory entry should be skipped.
func IsHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
