// Package docsource enumerates corpus documents from the filesystem.
// The source is re-readable: every call to ReadAll walks the tree again,
// so an ingestion run always sees the current state of the corpus.
package docsource

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/calenlabs/ragbook/core"
)

// DefaultIncludes matches the markdown flavors the corpus is written in.
var DefaultIncludes = []string{"**/*.md", "**/*.mdx"}

// Source yields documents from a directory tree, filtered by include and
// exclude glob patterns relative to the root.
type Source struct {
	root     string
	includes []string
	excludes []string
}

// Option configures a Source.
type Option func(*Source)

// WithIncludes overrides the include patterns.
func WithIncludes(patterns ...string) Option {
	return func(s *Source) {
		if len(patterns) > 0 {
			s.includes = patterns
		}
	}
}

// WithExcludes sets exclude patterns applied after includes.
func WithExcludes(patterns ...string) Option {
	return func(s *Source) {
		s.excludes = patterns
	}
}

// New creates a document source rooted at dir.
func New(dir string, opts ...Option) (*Source, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: docs directory %s: %v", core.ErrConfig, dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", core.ErrConfig, dir)
	}

	s := &Source{
		root:     root,
		includes: DefaultIncludes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Root returns the absolute corpus root.
func (s *Source) Root() string { return s.root }

// ReadAll walks the tree and reads every matching document, ordered by
// path. A single unreadable file fails the whole enumeration, naming the
// file, so a partially read corpus is never silently ingested.
func (s *Source) ReadAll() ([]core.Document, error) {
	var documents []core.Document

	err := filepath.Walk(s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}

		if info.IsDir() {
			if s.shouldExclude(relPath + "/") {
				return filepath.SkipDir
			}
			return nil
		}

		if !s.shouldInclude(relPath) || s.shouldExclude(relPath) {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading document %s: %w", relPath, err)
		}

		documents = append(documents, core.Document{
			Source:   filepath.ToSlash(relPath),
			Filename: info.Name(),
			Content:  string(data),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return documents, nil
}

func (s *Source) shouldInclude(path string) bool {
	for _, pattern := range s.includes {
		matched, err := doublestar.Match(pattern, filepath.ToSlash(path))
		if err == nil && matched {
			return true
		}
	}
	return false
}

func (s *Source) shouldExclude(path string) bool {
	for _, pattern := range s.excludes {
		matched, err := doublestar.Match(pattern, filepath.ToSlash(path))
		if err == nil && matched {
			return true
		}
	}
	return false
}
