package registry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// document is the on-disk layout of a registry file
type document struct {
	Zones  []Zone  `yaml:"zones" validate:"dive"`
	Plants []Plant `yaml:"plants" validate:"dive"`
}

// FileRegistry serves zones and plants from a YAML file. The file is
// re-read whenever its modification time changes.
type FileRegistry struct {
	path     string
	validate *validator.Validate
	logger   *slog.Logger

	mu      sync.Mutex
	modTime int64
	doc     document
}

// NewFileRegistry creates a registry backed by the YAML file at path
func NewFileRegistry(path string, logger *slog.Logger) *FileRegistry {
	return &FileRegistry{
		path:     path,
		validate: validator.New(),
		logger:   logger,
	}
}

// Zones returns all configured zones
func (r *FileRegistry) Zones(ctx context.Context) ([]Zone, error) {
	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	zones := make([]Zone, len(doc.Zones))
	copy(zones, doc.Zones)
	return zones, nil
}

// Plants returns the plants assigned to zoneID, matching dry/cure aliases
func (r *FileRegistry) Plants(ctx context.Context, zoneID string) ([]Plant, error) {
	doc, err := r.load()
	if err != nil {
		return nil, err
	}

	var plants []Plant
	for _, p := range doc.Plants {
		if p.Zone == zoneID || CanonicalZone(p.Zone) == CanonicalZone(zoneID) {
			plants = append(plants, p)
		}
	}
	return plants, nil
}

func (r *FileRegistry) load() (document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, err := os.Stat(r.path)
	if err != nil {
		return document{}, fmt.Errorf("failed to stat registry file %s: %w", r.path, err)
	}
	if info.ModTime().UnixNano() == r.modTime {
		return r.doc, nil
	}

	data, err := os.ReadFile(r.path)
	if err != nil {
		return document{}, fmt.Errorf("failed to read registry file %s: %w", r.path, err)
	}

	doc, err := parseDocument(data, r.validate)
	if err != nil {
		return document{}, fmt.Errorf("invalid registry file %s: %w", r.path, err)
	}

	r.doc = doc
	r.modTime = info.ModTime().UnixNano()
	r.logger.Info("Loaded zone registry", "path", r.path, "zones", len(doc.Zones), "plants", len(doc.Plants))

	return doc, nil
}

func parseDocument(data []byte, validate *validator.Validate) (document, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return document{}, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validate.Struct(doc); err != nil {
		return document{}, err
	}

	seen := make(map[string]bool, len(doc.Zones))
	for _, z := range doc.Zones {
		if seen[z.ID] {
			return document{}, fmt.Errorf("duplicate zone id %q", z.ID)
		}
		seen[z.ID] = true
	}
	return doc, nil
}
