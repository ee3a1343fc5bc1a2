// Package storage provides the root-confined file store used for cache
// entries, per-file results and the build-time record.
package storage

import "io/fs"

// Provider is the interface for file operations relative to a store root.
type Provider interface {
	// Root returns the absolute store root.
	Root() string
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// ReadJSON decodes the file at path into v.
	ReadJSON(path string, v any) error
	// WriteJSON atomically writes v as indented JSON.
	WriteJSON(path string, v any) error
	// Delete removes the file at path.
	Delete(path string) error
	// Walk visits every regular file under dir.
	Walk(dir string, fn func(rel string, info fs.FileInfo) error) error
}
