package credentials

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// KV is the persistent key-value collaborator. Get reports ok=false for an
// absent key; a non-nil error means the store itself could not be read.
type KV interface {
	Get(namespace, key string) (value string, ok bool, err error)
	Set(namespace string, values map[string]string) error
}

// FileKV persists every namespace into a single YAML document.
type FileKV struct {
	path string
	mu   sync.Mutex
}

// storeDocument is the on-disk layout of FileKV.
type storeDocument struct {
	Version    int                          `yaml:"version"`
	Namespaces map[string]map[string]string `yaml:"namespaces"`
}

// NewFileKV returns a FileKV backed by path. The file is created on first Set.
func NewFileKV(path string) *FileKV {
	return &FileKV{path: path}
}

// Path returns the backing file.
func (f *FileKV) Path() string {
	return f.path
}

// Get reads one key.
func (f *FileKV) Get(namespace, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return "", false, err
	}
	ns, ok := doc.Namespaces[namespace]
	if !ok {
		return "", false, nil
	}
	v, ok := ns[key]
	return v, ok, nil
}

// Set writes all values of a namespace in one atomic commit.
func (f *FileKV) Set(namespace string, values map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return err
	}
	ns, ok := doc.Namespaces[namespace]
	if !ok {
		ns = make(map[string]string, len(values))
		doc.Namespaces[namespace] = ns
	}
	for k, v := range values {
		ns[k] = v
	}

	return f.write(doc)
}

func (f *FileKV) read() (*storeDocument, error) {
	doc := &storeDocument{Version: 1, Namespaces: make(map[string]map[string]string)}

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read store %s: %w", f.path, err)
	}

	if err := yaml.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to parse store %s: %w", f.path, err)
	}
	if doc.Namespaces == nil {
		doc.Namespaces = make(map[string]map[string]string)
	}
	return doc, nil
}

func (f *FileKV) write(doc *storeDocument) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}

	tmpPath := f.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary store file: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to commit store file: %w", err)
	}
	return nil
}
