// Package fileutil provides case-insensitive file lookup over fs.FS.
//
// ROM dumps arrive from many sources with inconsistent file name casing
// ("BYTECODE.ROM", "bytecode.rom", "Bytecode.Rom"), so every ROM region is
// resolved through these helpers.
package fileutil

import (
	"fmt"
	"io/fs"
	"path"
	"strings"
)

// ErrNotFound is wrapped by lookups that find no matching entry.
var ErrNotFound = fs.ErrNotExist

// FindFileCaseInsensitiveFS searches dir in fsys for filename, ignoring case.
// The returned path uses forward slashes as fs.FS requires.
//
// Parameters:
//   - fsys: The file system to search in (os.DirFS, embed.FS, fstest.MapFS)
//   - dir: The directory to search in ("." for the root)
//   - filename: The filename to search for (case-insensitive)
func FindFileCaseInsensitiveFS(fsys fs.FS, dir, filename string) (string, error) {
	searchName := strings.ToLower(filename)

	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.ToLower(entry.Name()) == searchName {
			return path.Join(dir, entry.Name()), nil
		}
	}

	return "", fmt.Errorf("file not found: %s (searched in %s): %w", filename, dir, ErrNotFound)
}

// ReadFileCaseInsensitive reads name from fsys. An exact match is tried
// first, then a case-insensitive search of the parent directory.
func ReadFileCaseInsensitive(fsys fs.FS, name string) ([]byte, error) {
	// まず直接アクセスを試みる
	if data, err := fs.ReadFile(fsys, name); err == nil {
		return data, nil
	}

	// 大文字小文字を無視して検索
	actual, err := FindFileCaseInsensitiveFS(fsys, path.Dir(name), path.Base(name))
	if err != nil {
		return nil, err
	}
	return fs.ReadFile(fsys, actual)
}

// Exists reports whether name resolves in fsys, ignoring case.
func Exists(fsys fs.FS, name string) bool {
	if _, err := fs.Stat(fsys, name); err == nil {
		return true
	}
	_, err := FindFileCaseInsensitiveFS(fsys, path.Dir(name), path.Base(name))
	return err == nil
}
