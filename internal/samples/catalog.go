package samples

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/leafy-insurance/claims-backend/internal/claim"
	"github.com/leafy-insurance/claims-backend/internal/models"
)

// ErrNotFound is returned for names outside the catalog.
var ErrNotFound = errors.New("sample image not found")

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
}

// Catalog serves the sample photos of one directory.
type Catalog struct {
	dir string
}

// NewCatalog creates a catalog rooted at dir, creating it if needed.
func NewCatalog(dir string) (*Catalog, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating sample directory: %w", err)
	}
	return &Catalog{dir: dir}, nil
}

// Dir returns the catalog directory.
func (c *Catalog) Dir() string {
	return c.dir
}

// ListSamples returns the image file names, sorted.
func (c *Catalog) ListSamples(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("reading sample directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Path resolves name to a file inside the catalog.
func (c *Catalog) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", ErrNotFound
	}
	if !imageExtensions[strings.ToLower(filepath.Ext(name))] {
		return "", ErrNotFound
	}
	path := filepath.Join(c.dir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", ErrNotFound
	}
	return path, nil
}

// Read loads a sample as an upload image with its sniffed content type.
func (c *Catalog) Read(name string) (claim.Image, error) {
	path, err := c.Path(name)
	if err != nil {
		return claim.Image{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return claim.Image{}, fmt.Errorf("reading sample %s: %w", name, err)
	}
	return claim.Image{
		Name:        name,
		ContentType: mimetype.Detect(data).String(),
		Data:        data,
	}, nil
}

// FetchSample resolves a picker reference such as /sample_photos/car.jpg.
func (c *Catalog) FetchSample(ctx context.Context, ref string) (claim.Image, error) {
	if err := ctx.Err(); err != nil {
		return claim.Image{}, err
	}
	name := strings.TrimPrefix(ref, models.SamplePathPrefix)
	img, err := c.Read(name)
	if err != nil {
		return claim.Image{}, err
	}
	img.Name = claim.SampleFileName
	return img, nil
}
