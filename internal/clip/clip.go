// Package clip provides ClipRef implementations for running the pipeline
// outside a host editing application: an in-memory clip for tests and a
// file-backed clip whose metadata bag lives in a JSON sidecar next to the
// media file.
package clip

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bdougie/metafootage/internal/models"
)

// Memory is a ClipRef backed by a plain map. Safe for concurrent use.
type Memory struct {
	ClipName  string
	Path      string
	ProxyPath string

	mu     sync.Mutex
	fields map[string]string
}

var _ models.ClipRef = (*Memory)(nil)

func NewMemory(name, path string) *Memory {
	return &Memory{ClipName: name, Path: path, fields: map[string]string{}}
}

func (c *Memory) Name() string            { return c.ClipName }
func (c *Memory) SourcePath() string      { return c.Path }
func (c *Memory) LinkedProxyPath() string { return c.ProxyPath }

func (c *Memory) Metadata(key string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fields[key]
}

func (c *Memory) SetMetadata(fields map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fields == nil {
		c.fields = map[string]string{}
	}
	for k, v := range fields {
		c.fields[k] = v
	}
	return nil
}

// Fields returns a copy of the metadata bag.
func (c *Memory) Fields() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.fields))
	for k, v := range c.fields {
		out[k] = v
	}
	return out
}

// File is a ClipRef whose metadata bag persists as <media>.metadata.json
// beside the media file. Writes rewrite the whole sidecar.
type File struct {
	path string

	mu     sync.Mutex
	fields map[string]string
	loaded bool
}

var _ models.ClipRef = (*File)(nil)

func NewFile(mediaPath string) *File {
	return &File{path: mediaPath}
}

func (c *File) Name() string {
	base := filepath.Base(c.path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (c *File) SourcePath() string      { return c.path }
func (c *File) LinkedProxyPath() string { return "" }

func (c *File) sidecarPath() string {
	return c.path + ".metadata.json"
}

// load reads the sidecar once; a missing or corrupt sidecar means an empty
// bag rather than an error.
func (c *File) load() {
	if c.loaded {
		return
	}
	c.loaded = true
	c.fields = map[string]string{}
	data, err := os.ReadFile(c.sidecarPath())
	if err != nil {
		return
	}
	_ = json.Unmarshal(data, &c.fields)
}

func (c *File) Metadata(key string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.load()
	return c.fields[key]
}

func (c *File) SetMetadata(fields map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.load()
	for k, v := range fields {
		c.fields[k] = v
	}
	data, err := json.MarshalIndent(c.fields, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.sidecarPath(), data, 0644)
}
