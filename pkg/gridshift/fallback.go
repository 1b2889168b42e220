package gridshift

import (
	"fmt"
	"sort"
	"sync"

	"github.com/beetlebugorg/gridshift/internal/geodesy"
)

// Fallback is an alternate full datum transformation used when no catalog
// grid covers a point. Forward converts NTF to RGF93.
type Fallback interface {
	Name() string
	Forward(Point) (Point, error)
	Inverse(Point) (Point, error)
}

// FallbackFactory creates a Fallback.
type FallbackFactory func() (Fallback, error)

var (
	fallbacksMu sync.RWMutex
	fallbacks   = map[string]FallbackFactory{
		MeanTranslationName: func() (Fallback, error) { return MeanTranslation{}, nil },
	}
)

// RegisterFallback makes a fallback available to catalogs under name. It
// replaces any earlier registration.
func RegisterFallback(name string, factory FallbackFactory) {
	fallbacksMu.Lock()
	defer fallbacksMu.Unlock()
	fallbacks[name] = factory
}

// LookupFallback creates the fallback registered under name.
func LookupFallback(name string) (Fallback, error) {
	fallbacksMu.RLock()
	factory, ok := fallbacks[name]
	fallbacksMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown fallback %q (have %v)", ErrConfig, name, FallbackNames())
	}
	return factory()
}

// FallbackNames lists registered fallbacks, sorted.
func FallbackNames() []string {
	fallbacksMu.RLock()
	defer fallbacksMu.RUnlock()
	names := make([]string, 0, len(fallbacks))
	for name := range fallbacks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MeanTranslationName is the registry name of MeanTranslation.
const MeanTranslationName = "ntf-mean"

// MeanTranslation converts with the single mean geocentric translation
// between NTF (Clarke 1880 IGN) and RGF93 (GRS80). It is good to a few
// metres across France.
type MeanTranslation struct{}

// Name implements Fallback.
func (MeanTranslation) Name() string { return MeanTranslationName }

// Forward converts NTF to RGF93.
func (MeanTranslation) Forward(p Point) (Point, error) {
	g := geodesy.Translate(p.geographic(), geodesy.Clarke1880IGN, geodesy.GRS80, geodesy.NTFToRGF93)
	return pointFrom(g), nil
}

// Inverse converts RGF93 to NTF.
func (MeanTranslation) Inverse(p Point) (Point, error) {
	back := geodesy.Vector{}.Sub(geodesy.NTFToRGF93)
	g := geodesy.Translate(p.geographic(), geodesy.GRS80, geodesy.Clarke1880IGN, back)
	return pointFrom(g), nil
}
