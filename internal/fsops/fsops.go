// Package fsops implements the filesystem primitive adapters the
// interpreter's FS_* opcodes call (spec.md §6). Every adapter returns a
// plain boolean or string result, never a Go error: per spec.md §4.3/§4.6,
// a failing primitive makes its opcode a no-op/false, it never aborts the
// program. Errors are logged at the boundary and folded into the
// ok=false/"" result here so the interpreter never has to think about them.
package fsops

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"taskd/internal/obslog"
)

// Adapter bundles the filesystem primitives against the real OS. A struct
// (rather than package-level functions) lets tests substitute a logger and
// keeps the door open for a future root-jailed implementation without
// touching interp callers.
type Adapter struct {
	log obslog.Logger
}

// New returns an Adapter that logs failures through log.
func New(log obslog.Logger) *Adapter {
	return &Adapter{log: log}
}

func (a *Adapter) warn(op, path string, err error) {
	if err != nil {
		a.log.WithFields(map[string]any{"op": op, "path": path}).Debug(err.Error())
	}
}

// Create makes a file (kind="file") or directory (kind="dir") at path.
func (a *Adapter) Create(path, kind string) bool {
	var err error
	if kind == "dir" {
		err = os.Mkdir(path, 0o755)
	} else {
		var f *os.File
		f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			f.Close()
		}
	}
	a.warn("fs_create", path, err)
	return err == nil
}

// Delete removes a file, or recursively removes a directory tree.
func (a *Adapter) Delete(path string) bool {
	info, err := os.Lstat(path)
	if err != nil {
		a.warn("fs_delete", path, err)
		return false
	}
	if info.IsDir() {
		err = os.RemoveAll(path)
	} else {
		err = os.Remove(path)
	}
	a.warn("fs_delete", path, err)
	return err == nil
}

// Copy copies a file, or recursively copies a directory tree, from src to
// dst.
func (a *Adapter) Copy(src, dst string) bool {
	info, err := os.Lstat(src)
	if err != nil {
		a.warn("fs_copy", src, err)
		return false
	}
	if info.IsDir() {
		err = copyDir(src, dst, info.Mode())
	} else {
		err = copyFile(src, dst, info.Mode())
	}
	a.warn("fs_copy", src, err)
	return err == nil
}

// Move renames src to dst, falling back to copy-then-delete on a
// cross-device rename failure (spec.md §4.1).
func (a *Adapter) Move(src, dst string) bool {
	err := os.Rename(src, dst)
	if err == nil {
		return true
	}
	if !errors.Is(err, syscall.EXDEV) {
		a.warn("fs_move", src, err)
		return false
	}
	if !a.Copy(src, dst) {
		return false
	}
	return a.Delete(src)
}

// Write writes content to path using mode, an fopen-style mode string
// ("w", "a", ...). Only "w" (truncate) and "a" (append) are supported; any
// other mode is treated as a write failure.
func (a *Adapter) Write(path, content, mode string) bool {
	flags := os.O_WRONLY | os.O_CREATE
	switch mode {
	case "w":
		flags |= os.O_TRUNC
	case "a":
		flags |= os.O_APPEND
	default:
		a.warn("fs_write", path, errUnsupportedMode(mode))
		return false
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		a.warn("fs_write", path, err)
		return false
	}
	defer f.Close()
	_, err = f.WriteString(content)
	a.warn("fs_write", path, err)
	return err == nil
}

// Read returns the file's contents as a UTF-8 string, or ("", false) on
// failure.
func (a *Adapter) Read(path string) (string, bool) {
	b, err := os.ReadFile(path)
	if err != nil {
		a.warn("fs_read", path, err)
		return "", false
	}
	return string(b), true
}

// List returns a newline-separated list of entry names under path
// (excluding "." and ".."), or "" if the directory is empty, and false on
// failure.
func (a *Adapter) List(path string) (string, bool) {
	entries, err := os.ReadDir(path)
	if err != nil {
		a.warn("fs_list", path, err)
		return "", false
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return joinLines(names), true
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

func copyDir(src, dst string, mode os.FileMode) error {
	if err := os.MkdirAll(dst, mode); err != nil {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, e := range entries {
		sPath := filepath.Join(src, e.Name())
		dPath := filepath.Join(dst, e.Name())
		info, err := e.Info()
		if err != nil {
			return err
		}
		if info.IsDir() {
			if err := copyDir(sPath, dPath, info.Mode()); err != nil {
				return err
			}
		} else if err := copyFile(sPath, dPath, info.Mode()); err != nil {
			return err
		}
	}
	return nil
}

type unsupportedModeError string

func (e unsupportedModeError) Error() string { return "fsops: unsupported write mode " + string(e) }

func errUnsupportedMode(mode string) error { return unsupportedModeError(mode) }
