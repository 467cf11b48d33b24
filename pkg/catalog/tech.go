package catalog

import (
	"strings"

	"github.com/matzehuels/appmap/pkg/errors"
)

// TechCategory is the fixed set of technology groupings shown on an app.
type TechCategory string

const (
	TechVendor     TechCategory = "vendor"
	TechOS         TechCategory = "os"
	TechDatabase   TechCategory = "database"
	TechLanguage   TechCategory = "language"
	TechFramework  TechCategory = "framework"
	TechMiddleware TechCategory = "middleware"
	TechThirdParty TechCategory = "third_party"
	TechPlatform   TechCategory = "platform"
)

// TechCategories lists every category in display order.
var TechCategories = []TechCategory{
	TechVendor,
	TechOS,
	TechDatabase,
	TechLanguage,
	TechFramework,
	TechMiddleware,
	TechThirdParty,
	TechPlatform,
}

var techDisplayKeys = map[TechCategory]string{
	TechVendor:     "Vendor",
	TechOS:         "Operating System",
	TechDatabase:   "Database",
	TechLanguage:   "Programming Language",
	TechFramework:  "Framework",
	TechMiddleware: "Middleware",
	TechThirdParty: "Third Party",
	TechPlatform:   "Platform",
}

// Valid reports whether c is one of the known categories.
func (c TechCategory) Valid() bool {
	_, ok := techDisplayKeys[c]
	return ok
}

// DisplayKey returns the canonical display key, e.g. "Operating System".
func (c TechCategory) DisplayKey() string {
	return techDisplayKeys[c]
}

// ParseTechCategory accepts a category tag ("third_party") or its display key
// ("Third Party"), case-insensitively. Anything else is rejected.
func ParseTechCategory(s string) (TechCategory, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	for _, c := range TechCategories {
		if norm == string(c) || norm == strings.ToLower(c.DisplayKey()) {
			return c, nil
		}
	}
	return "", errors.New(errors.ErrCodeInvalidInput, "unknown technology category: %q", s)
}

// TechComponent is one technology attached to an app.
type TechComponent struct {
	Category TechCategory `json:"category" bson:"category" toml:"category"`
	Name     string       `json:"name" bson:"name" toml:"name"`
	Version  string       `json:"version,omitempty" bson:"version,omitempty" toml:"version"`
}

// Label returns "name version" or just the name.
func (t TechComponent) Label() string {
	if t.Version == "" {
		return t.Name
	}
	return t.Name + " " + t.Version
}

// TechGroup is the components of one category.
type TechGroup struct {
	Category   TechCategory    `json:"category"`
	DisplayKey string          `json:"display_key"`
	Components []TechComponent `json:"components"`
}

// TechStack is an app's technologies grouped by category in display order.
type TechStack []TechGroup

// Group returns the components for category c.
func (s TechStack) Group(c TechCategory) []TechComponent {
	for _, g := range s {
		if g.Category == c {
			return g.Components
		}
	}
	return nil
}

// GroupTechnologies groups components by category. Empty categories and
// components with an unknown category are omitted.
func GroupTechnologies(components []TechComponent) TechStack {
	byCat := make(map[TechCategory][]TechComponent)
	for _, t := range components {
		if !t.Category.Valid() {
			continue
		}
		byCat[t.Category] = append(byCat[t.Category], t)
	}

	var out TechStack
	for _, c := range TechCategories {
		if comps := byCat[c]; len(comps) > 0 {
			out = append(out, TechGroup{Category: c, DisplayKey: c.DisplayKey(), Components: comps})
		}
	}
	return out
}
