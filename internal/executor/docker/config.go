package docker

import (
	"sort"
	"time"
)

// Runtime says how to run code of one language: the image to start and the
// interpreter invocation that receives the code as its final argument.
type Runtime struct {
	Image string
	Cmd   []string
}

// Command returns the exec command line for code.
func (r Runtime) Command(code string) []string {
	cmd := make([]string, 0, len(r.Cmd)+1)
	cmd = append(cmd, r.Cmd...)
	return append(cmd, code)
}

// Config holds the configuration for Docker execution.
type Config struct {
	// Runtimes maps a snippet language to the runtime that executes it.
	// Languages sharing an image share a container pool.
	Runtimes map[string]Runtime
	// MemoryLimit is the maximum amount of memory a container can use (in bytes).
	MemoryLimit int64
	// CPULimit is the number of CPUs a container can use.
	CPULimit float64
	// Timeout bounds a single run.
	Timeout time.Duration
	// PoolSize is the number of pre-warmed containers kept per image.
	PoolSize int
	// PullTimeout bounds pulling every image at startup.
	PullTimeout time.Duration
}

// DefaultRuntimes covers the interpreted languages that have small official images.
func DefaultRuntimes() map[string]Runtime {
	python := Runtime{Image: "python:3.12-alpine", Cmd: []string{"python", "-c"}}
	return map[string]Runtime{
		"python":     python,
		"python3":    python,
		"javascript": {Image: "node:22-alpine", Cmd: []string{"node", "-e"}},
		"ruby":       {Image: "ruby:3.3-alpine", Cmd: []string{"ruby", "-e"}},
		"bash":       {Image: "bash:5.2", Cmd: []string{"bash", "-c"}},
	}
}

// DefaultConfig provides sensible sandbox limits.
func DefaultConfig() Config {
	return Config{
		Runtimes:    DefaultRuntimes(),
		MemoryLimit: 128 * 1024 * 1024,
		CPULimit:    0.5,
		Timeout:     5 * time.Second,
		PoolSize:    2,
		PullTimeout: 5 * time.Minute,
	}
}

// Languages returns the configured languages, sorted.
func (c Config) Languages() []string {
	langs := make([]string, 0, len(c.Runtimes))
	for lang := range c.Runtimes {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// Images returns each distinct runtime image once, sorted.
func (c Config) Images() []string {
	seen := make(map[string]struct{}, len(c.Runtimes))
	images := make([]string, 0, len(c.Runtimes))
	for _, rt := range c.Runtimes {
		if _, ok := seen[rt.Image]; ok {
			continue
		}
		seen[rt.Image] = struct{}{}
		images = append(images, rt.Image)
	}
	sort.Strings(images)
	return images
}
