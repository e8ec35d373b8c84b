// Package catalog serves the entity catalog: the embedded default, or an
// override file that is reloaded when it changes on disk.
package catalog

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/HerbHall/welfaredesk/pkg/models"
)

// Source holds the current catalog. Readers always see a complete catalog;
// a reload swaps it whole.
type Source struct {
	path   string
	logger *zap.Logger

	mu        sync.RWMutex
	cat       *models.Catalog
	listeners []func(*models.Catalog)
}

// NewSource loads the catalog at path, or the embedded default when path is
// empty.
func NewSource(path string, logger *zap.Logger) (*Source, error) {
	s := &Source{path: path, logger: logger}
	cat, err := s.load()
	if err != nil {
		return nil, err
	}
	s.cat = cat
	return s, nil
}

func (s *Source) load() (*models.Catalog, error) {
	if s.path == "" {
		return models.DefaultCatalog()
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", s.path, err)
	}
	cat, err := models.ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", s.path, err)
	}
	return cat, nil
}

// Path is the override file, or "" for the embedded catalog.
func (s *Source) Path() string { return s.path }

// Current returns the catalog in effect.
func (s *Source) Current() *models.Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cat
}

func (s *Source) Get(name string) (*models.Entity, bool) { return s.Current().Get(name) }

func (s *Source) ByEndpoint(script string) (*models.Entity, bool) {
	return s.Current().ByEndpoint(script)
}

func (s *Source) All() []models.Entity { return s.Current().All() }

func (s *Source) Names() []string { return s.Current().Names() }

// OnReload registers fn to run after every successful reload.
func (s *Source) OnReload(fn func(*models.Catalog)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Reload re-reads the override file. An invalid file leaves the current
// catalog in place and returns the error.
func (s *Source) Reload() error {
	cat, err := s.load()
	if err != nil {
		s.logger.Warn("catalog reload rejected", zap.String("path", s.path), zap.Error(err))
		return err
	}
	s.mu.Lock()
	s.cat = cat
	listeners := append([](func(*models.Catalog))(nil), s.listeners...)
	s.mu.Unlock()

	s.logger.Info("catalog reloaded",
		zap.String("path", s.path),
		zap.Strings("entities", cat.Names()),
	)
	for _, fn := range listeners {
		fn(cat)
	}
	return nil
}
