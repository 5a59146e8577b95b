// Copyright 2024 The Carvel Authors.
// SPDX-License-Identifier: Apache-2.0

package files

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	templateExts = []string{".sql", ".jinja", ".jinja2", ".j2", ".tpl", ".txt", ".md"}
	dataExts     = []string{".yaml", ".yml", ".json", ".toml"}
	starlarkExts = []string{".star"}
)

type Type int

const (
	TypeUnknown Type = iota
	TypeTemplate
	TypeData
	TypeStarlark
)

func (t Type) String() string {
	switch t {
	case TypeTemplate:
		return "template"
	case TypeData:
		return "data"
	case TypeStarlark:
		return "starlark"
	default:
		return "unknown"
	}
}

type File struct {
	src     Source
	relPath string
}

// NewFiles expands paths (files, directories, "-" for stdin and http(s)
// URLs) into files. Directories are walked in lexical order.
func NewFiles(paths []string, recursive bool) ([]*File, error) {
	var fileSrcs []Source

	for _, path := range paths {
		switch {
		case path == "-":
			fileSrcs = append(fileSrcs, NewStdinSource())

		case strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://"):
			fileSrcs = append(fileSrcs, NewCachedSource(NewHTTPSource(path)))

		default:
			fileInfo, err := os.Stat(path)
			if err != nil {
				return nil, fmt.Errorf("Checking file '%s': %w", path, err)
			}

			if fileInfo.IsDir() {
				if !recursive {
					return nil, fmt.Errorf("Expected file '%s' to not be a directory", path)
				}

				var selectedPaths []string

				err := filepath.Walk(path, func(walkedPath string, fi os.FileInfo, err error) error {
					if err != nil || fi.IsDir() {
						return err
					}
					selectedPaths = append(selectedPaths, walkedPath)
					return nil
				})
				if err != nil {
					return nil, fmt.Errorf("Listing files '%s': %w", path, err)
				}

				sort.Strings(selectedPaths)

				for _, selectedPath := range selectedPaths {
					fileSrcs = append(fileSrcs, NewLocalSource(selectedPath, path))
				}
			} else {
				fileSrcs = append(fileSrcs, NewLocalSource(path, ""))
			}
		}
	}

	var files []*File

	for _, fileSrc := range fileSrcs {
		file, err := NewFileFromSource(fileSrc)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}

	return files, nil
}

func NewFileFromSource(fileSrc Source) (*File, error) {
	relPath, err := fileSrc.RelativePath()
	if err != nil {
		return nil, fmt.Errorf("Calculating relative path for '%s': %s", fileSrc.Description(), err)
	}

	return &File{src: fileSrc, relPath: filepath.ToSlash(relPath)}, nil
}

func MustNewFileFromSource(fileSrc Source) *File {
	file, err := NewFileFromSource(fileSrc)
	if err != nil {
		panic(err)
	}
	return file
}

func (r *File) Description() string    { return r.src.Description() }
func (r *File) RelativePath() string   { return r.relPath }
func (r *File) Bytes() ([]byte, error) { return r.src.Bytes() }

// TemplateName is the name templates use to include or import this file.
func (r *File) TemplateName() string { return r.relPath }

func (r *File) Type() Type {
	switch {
	case r.matchesExt(templateExts):
		return TypeTemplate
	case r.matchesExt(dataExts):
		return TypeData
	case r.matchesExt(starlarkExts):
		return TypeStarlark
	default:
		return TypeUnknown
	}
}

// Ext returns the lowercased extension including the dot.
func (r *File) Ext() string {
	return strings.ToLower(filepath.Ext(r.relPath))
}

func (r *File) matchesExt(exts []string) bool {
	ext := r.Ext()
	for _, candidate := range exts {
		if ext == candidate {
			return true
		}
	}
	return false
}

// Filter returns files of the given type.
func Filter(files []*File, typ Type) []*File {
	var result []*File
	for _, file := range files {
		if file.Type() == typ {
			result = append(result, file)
		}
	}
	return result
}
