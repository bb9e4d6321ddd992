// Package storage gives the pipeline rooted, traversal-safe file access for
// both the read-only corpus and the output tree.
package storage

import "github.com/starford/aozoraconv/internal/models"

// Provider is the interface for file operations relative to a root.
type Provider interface {
	// List returns metadata for every file under dir whose name ends in ext.
	List(dir, ext string) ([]models.FileInfo, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// Delete removes the file or directory tree at path.
	Delete(path string) error
}
