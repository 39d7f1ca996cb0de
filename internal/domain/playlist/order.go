package playlist

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
)

// SortAlphabetic orders tracks byte-wise by full path, matching the order a
// sorted directory scan produces.
func SortAlphabetic(tracks []string) {
	sort.Strings(tracks)
}

// Shuffle permutes tracks in place (Fisher-Yates).
func Shuffle(tracks []string) {
	rand.Shuffle(len(tracks), func(i, j int) {
		tracks[i], tracks[j] = tracks[j], tracks[i]
	})
}

// PickRandomSubdirectory returns a uniformly chosen direct subdirectory of
// root. Hidden directories are not eligible.
func PickRandomSubdirectory(root string) (string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", err
	}

	var dirs []string
	for _, e := range entries {
		if !e.IsDir() || IsHidden(e.Name()) {
			continue
		}
		dirs = append(dirs, filepath.Join(root, e.Name()))
	}
	if len(dirs) == 0 {
		return "", ErrEmpty
	}
	return dirs[rand.IntN(len(dirs))], nil
}
