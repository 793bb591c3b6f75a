package model

import (
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Document represents a unit of source knowledge
type Document struct {
	Source   string        `json:"source"`
	Title    string        `json:"title,omitempty"`
	Content  string        `json:"content"`
	Metadata ChunkMetadata `json:"metadata,omitempty"` // Partial tags, overriding the classifier
}

// DocumentSource yields documents one by one. The chunking pipeline
// only consumes this iterator and never reads files itself.
type DocumentSource = iter.Seq2[*Document, error]

// NewDocumentFromFile reads a file and creates a Document with the file content
// The title defaults to the filename, and source to the file path
func NewDocumentFromFile(filePath string, metadata ChunkMetadata) (*Document, error) {
	content, err := os.ReadFile(filePath) // #nosec G304 -- paths come from the operator's docs directory
	if err != nil {
		return nil, err
	}

	filename := filepath.Base(filePath)
	title := strings.TrimSuffix(filename, filepath.Ext(filename))
	if title == "" {
		title = filename
	}

	return &Document{
		Title:    title,
		Source:   filePath,
		Content:  string(content),
		Metadata: metadata,
	}, nil
}

// Documents returns a source over an in-memory list of documents.
func Documents(docs ...*Document) DocumentSource {
	return func(yield func(*Document, error) bool) {
		for _, doc := range docs {
			if !yield(doc, nil) {
				return
			}
		}
	}
}

// DirectorySource walks root in lexical order and yields every file whose
// extension is in exts (all files if exts is empty). Sources are relative to root.
func DirectorySource(root string, exts ...string) DocumentSource {
	return func(yield func(*Document, error) bool) {
		var paths []string
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if len(exts) > 0 && !slices.Contains(exts, strings.ToLower(filepath.Ext(path))) {
				return nil
			}
			paths = append(paths, path)
			return nil
		})
		if err != nil {
			yield(nil, err)
			return
		}

		for _, path := range paths {
			doc, err := NewDocumentFromFile(path, ChunkMetadata{})
			if err == nil {
				if rel, relErr := filepath.Rel(root, path); relErr == nil {
					doc.Source = filepath.ToSlash(rel)
				}
			}
			if !yield(doc, err) {
				return
			}
		}
	}
}
