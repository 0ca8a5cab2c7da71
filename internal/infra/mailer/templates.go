package mailer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// TemplateStore loads notification templates from a directory and caches
// them. Templates carry ${{TOKEN}} placeholders substituted by callers.
type TemplateStore struct {
	dir string

	mu    sync.RWMutex
	cache map[string]string
}

// NewTemplateStore constructs a store rooted at dir.
func NewTemplateStore(dir string) *TemplateStore {
	return &TemplateStore{
		dir:   dir,
		cache: make(map[string]string),
	}
}

// Load returns the template body for name. Names are plain file names; any
// path separator is rejected.
func (s *TemplateStore) Load(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name != filepath.Base(name) {
		return "", fmt.Errorf("invalid template name %q", name)
	}

	s.mu.RLock()
	if body, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return body, nil
	}
	s.mu.RUnlock()

	raw, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("read template %s: %w", name, err)
	}

	body := string(raw)

	s.mu.Lock()
	s.cache[name] = body
	s.mu.Unlock()

	return body, nil
}
