package reference

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"log/slog"
	"math"

	"github.com/corona10/goimagehash"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/soocke/tower-bot-go/config"
	"github.com/soocke/tower-bot-go/domain/capture"
)

// Library holds every loaded reference pattern. It is immutable after Load.
type Library struct {
	names      []string
	patterns   map[string]*capture.Pattern
	thresholds map[string]float64
}

// Load decodes every reference declared in m from fsys. Any unreadable or
// undecodable image aborts the load with a *MissingAssetError.
func Load(fsys fs.FS, m *Manifest, logger *slog.Logger) (*Library, error) {
	if m == nil {
		return nil, fmt.Errorf("reference: nil manifest")
	}
	lib := &Library{
		patterns:   make(map[string]*capture.Pattern, len(m.References)),
		thresholds: make(map[string]float64, len(m.References)),
	}
	hashes := make(map[string]*goimagehash.ImageHash, len(m.References))
	for _, d := range m.References {
		img, err := decode(fsys, d.Path)
		if err != nil {
			return nil, &MissingAssetError{Name: d.Name, Path: d.Path, Err: err}
		}
		if d.Scale > 0 && d.Scale != 1 {
			b := img.Bounds()
			w := int(math.Round(float64(b.Dx()) * d.Scale))
			h := int(math.Round(float64(b.Dy()) * d.Scale))
			if w < 1 || h < 1 {
				return nil, &MissingAssetError{Name: d.Name, Path: d.Path, Err: fmt.Errorf("scale %v leaves an empty image", d.Scale)}
			}
			img = imaging.Resize(img, w, h, imaging.Lanczos)
		}
		if h, err := goimagehash.PerceptionHash(img); err == nil {
			for other, oh := range hashes {
				if dist, err := h.Distance(oh); err == nil && dist == 0 && logger != nil {
					logger.Warn("references look identical", "category", "error", "a", other, "b", d.Name)
				}
			}
			hashes[d.Name] = h
		}
		lib.names = append(lib.names, d.Name)
		lib.patterns[d.Name] = capture.NewPattern(d.Name, img)
		if d.Threshold > 0 {
			lib.thresholds[d.Name] = d.Threshold
		}
		if logger != nil {
			sz := lib.patterns[d.Name].Size()
			logger.Debug("reference loaded", "category", "state", "name", d.Name, "w", sz.X, "h", sz.Y)
		}
	}
	return lib, nil
}

func decode(fsys fs.FS, path string) (image.Image, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// Get returns the pattern for name. Asking for an undeclared name is a
// programming error and panics.
func (l *Library) Get(name string) *capture.Pattern {
	p, ok := l.patterns[name]
	if !ok {
		panic(fmt.Sprintf("reference: %q was never declared", name))
	}
	return p
}

// Has reports whether name was declared.
func (l *Library) Has(name string) bool {
	_, ok := l.patterns[name]
	return ok
}

// Threshold returns the declared threshold for name, or config.DefaultThreshold.
func (l *Library) Threshold(name string) float64 {
	if v, ok := l.thresholds[name]; ok {
		return v
	}
	return config.DefaultThreshold
}

// Names returns the declared names in manifest order.
func (l *Library) Names() []string {
	return append([]string(nil), l.names...)
}

// Require fails with a *MissingAssetError for the first name not declared.
func (l *Library) Require(names ...string) error {
	for _, n := range names {
		if !l.Has(n) {
			return &MissingAssetError{Name: n, Err: fmt.Errorf("not declared in manifest")}
		}
	}
	return nil
}
