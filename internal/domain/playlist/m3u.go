package playlist

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// ParseM3U reads an m3u file and returns its entries in file order.
// Comment lines and extended-info directives are skipped; relative paths are
// resolved against the m3u file's directory. URLs pass through untouched.
func ParseM3U(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer f.Close()

	base := filepath.Dir(path)
	var tracks []string

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "http") || filepath.IsAbs(line) {
			tracks = append(tracks, line)
			continue
		}
		tracks = append(tracks, filepath.Join(base, line))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, ErrEmpty
	}
	return tracks, nil
}
