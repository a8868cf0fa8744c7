package commerce

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"storefront/internal/catalog"
	"storefront/pkg/errors"
)

// FileSource serves products from a directory of JSON files, one product per file.
// Regions are read from an optional regions.json in the same directory.
type FileSource struct {
	dir    string
	logger zerolog.Logger

	mu       sync.RWMutex
	products map[string]*catalog.Product
	regions  []catalog.Region
	onReload func(productIDs []string)
}

const regionsFile = "regions.json"

// NewFileSource loads every *.json file in dir.
func NewFileSource(dir string, logger zerolog.Logger) (*FileSource, error) {
	s := &FileSource{dir: dir, logger: logger}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// OnReload registers fn to be called with the IDs of the products present after each reload.
func (s *FileSource) OnReload(fn func(productIDs []string)) {
	s.mu.Lock()
	s.onReload = fn
	s.mu.Unlock()
}

// Reload rereads the directory. Invalid product files fail the whole reload and leave the
// previous catalog in place.
func (s *FileSource) Reload() error {
	paths, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return err
	}
	products := make(map[string]*catalog.Product, len(paths))
	var regions []catalog.Region
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if filepath.Base(path) == regionsFile {
			if err := json.Unmarshal(data, &regions); err != nil {
				return fmt.Errorf("parse %s: %w", path, err)
			}
			continue
		}
		var p catalog.Product
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		if err := catalog.Validate(&p); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		products[p.ID] = &p
	}

	s.mu.Lock()
	s.products = products
	s.regions = regions
	fn := s.onReload
	s.mu.Unlock()

	s.logger.Info().Str("dir", s.dir).Int("products", len(products)).Int("regions", len(regions)).Msg("catalog loaded")
	if fn != nil {
		fn(s.ProductIDs())
	}
	return nil
}

// GetProduct returns a copy of the product. Prices are not region-resolved; regionID is ignored.
func (s *FileSource) GetProduct(_ context.Context, id, _ string) (*catalog.Product, error) {
	s.mu.RLock()
	p, ok := s.products[id]
	s.mu.RUnlock()
	if !ok {
		return nil, errors.NewProductNotFoundError(id)
	}
	cp := *p
	return &cp, nil
}

// ListRegions returns the regions from regions.json.
func (s *FileSource) ListRegions(context.Context) ([]catalog.Region, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]catalog.Region(nil), s.regions...), nil
}

// ProductIDs returns the loaded product IDs.
func (s *FileSource) ProductIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.products))
	for id := range s.products {
		ids = append(ids, id)
	}
	return ids
}

// Watch reloads the catalog whenever a JSON file in the directory changes, until ctx is done.
func (s *FileSource) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(s.dir); err != nil {
		return fmt.Errorf("watch %s: %w", s.dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(ev.Name, ".json") || ev.Op == fsnotify.Chmod {
				continue
			}
			if err := s.Reload(); err != nil {
				s.logger.Error().Err(err).Str("file", ev.Name).Msg("catalog reload failed, keeping previous")
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn().Err(err).Msg("catalog watcher error")
		}
	}
}
