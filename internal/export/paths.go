package export

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultSeparators are the PV name characters mapped to directory
// separators.
const DefaultSeparators = ":-{}"

// Paths builds output file names.
type Paths struct {
	root       string
	separators string
}

// NewPaths returns a Paths rooted at root. Every character of separators
// found in a PV name becomes a directory separator.
func NewPaths(root, separators string) Paths {
	return Paths{root: root, separators: separators}
}

// PVPath returns the PV name with separator characters replaced.
func (p Paths) PVPath(pv string) string {
	if p.separators == "" {
		return pv
	}
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(p.separators, r) {
			return filepath.Separator
		}
		return r
	}, pv)
}

// File returns the path of a PV's file for one year and generation.
// Generation 0 has no suffix.
func (p Paths) File(pv string, year, generation int) (string, error) {
	name := p.PVPath(pv) + ":" + strconv.Itoa(year) + ".pb"
	if generation > 0 {
		name += "." + strconv.Itoa(generation)
	}

	if pv == "" || !localElements(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPVName, pv)
	}
	return filepath.Join(p.root, name), nil
}

// localElements reports whether every element of rel names a real
// directory entry. Empty, "." and ".." elements would let two PV names
// share one file.
func localElements(rel string) bool {
	for _, elem := range strings.Split(rel, string(filepath.Separator)) {
		if elem == "" || elem == "." || elem == ".." {
			return false
		}
	}
	return filepath.IsLocal(rel)
}
