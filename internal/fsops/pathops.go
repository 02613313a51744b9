package fsops

import (
	"os"
	"path/filepath"
	"strings"
)

// PathJoin concatenates base and name with exactly one "/" separator,
// regardless of whether base already ends in one (spec.md §4.1).
func (a *Adapter) PathJoin(base, name string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(name, "/")
}

// DirContains recursively verifies that every path existing under a also
// exists (by the same relative name) under b. Symmetry is not required
// (spec.md §4.1): b may contain extra entries a doesn't have.
func (a *Adapter) DirContains(dirA, dirB string) bool {
	err := filepath.WalkDir(dirA, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dirA, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if _, statErr := os.Lstat(filepath.Join(dirB, rel)); statErr != nil {
			return statErr
		}
		return nil
	})
	return err == nil
}

// RandomWalkPicker chooses one entry from options, uniformly at random.
// The caller owns the PRNG (spec.md §9 resolves the global-PRNG hazard by
// keeping random state per-VM, not in this package).
type RandomWalkPicker func(options []string) string

// RandomWalk starts at root and takes up to depth steps; at each step it
// lists the current directory, keeps only subdirectory entries, and
// descends into one chosen by pick. It stops early when no subdirectory
// exists, returning the deepest path reached (spec.md §4.1).
func (a *Adapter) RandomWalk(root string, depth int, pick RandomWalkPicker) string {
	current := root
	for i := 0; i < depth; i++ {
		entries, err := os.ReadDir(current)
		if err != nil {
			break
		}
		var dirs []string
		for _, e := range entries {
			if e.IsDir() {
				dirs = append(dirs, e.Name())
			}
		}
		if len(dirs) == 0 {
			break
		}
		choice := pick(dirs)
		current = filepath.Join(current, choice)
	}
	return current
}
