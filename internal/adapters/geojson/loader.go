// Package geojson reads the basin layers from the GeoJSON directory.
package geojson

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/pauloqxm/portal-comite/internal/domain/geo"
	"github.com/pauloqxm/portal-comite/pkg/logger"
)

// Loader reads layer files once and keeps them in memory.
type Loader struct {
	dir    string
	mu     sync.RWMutex
	layers map[string]*geo.FeatureCollection
	loaded map[string]bool
	logger logger.Logger
}

// NewLoader creates a loader for dir.
func NewLoader(dir string) *Loader {
	return &Loader{
		dir:    dir,
		layers: map[string]*geo.FeatureCollection{},
		loaded: map[string]bool{},
		logger: logger.Get().Named("geojson"),
	}
}

// Layer returns the named layer. A missing file yields (nil, nil); a
// malformed file is an error. Unknown names wrap geo.ErrUnknownLayer.
func (l *Loader) Layer(ctx context.Context, name string) (*geo.FeatureCollection, error) {
	layer, err := geo.LayerByName(name)
	if err != nil {
		return nil, err
	}

	l.mu.RLock()
	fc, done := l.layers[name], l.loaded[name]
	l.mu.RUnlock()
	if done {
		return fc, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loaded[name] {
		return l.layers[name], nil
	}

	data, err := os.ReadFile(filepath.Join(l.dir, layer.File))
	if errors.Is(err, fs.ErrNotExist) {
		l.logger.Warn(ctx, "layer file missing", logger.String("layer", name), logger.String("file", layer.File))
		l.loaded[name] = true
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("geojson: read %s: %w", layer.File, err)
	}
	fc, err = geo.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("geojson: %s: %w", layer.File, err)
	}
	l.layers[name] = fc
	l.loaded[name] = true
	l.logger.Debug(ctx, "layer loaded", logger.String("layer", name), logger.Int("features", len(fc.Features)))
	return fc, nil
}

// LoadAll reads every known layer and reports how many were present.
func (l *Loader) LoadAll(ctx context.Context) (int, error) {
	var errs []error
	present := 0
	for _, layer := range geo.Layers {
		fc, err := l.Layer(ctx, layer.Name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if fc != nil {
			present++
		}
	}
	return present, errors.Join(errs...)
}
