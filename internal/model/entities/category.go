package entities

import (
	"fmt"
	"strings"
)

// Category is the closed set of waste types a compartment can hold.
type Category uint8

const (
	CategoryUnknown Category = iota
	CategoryTrash
	CategoryPaper
	CategoryPlastic
	CategoryMetal
	CategoryGlass
	CategoryCardboard
)

var categoryNames = [...]string{
	CategoryUnknown:   "unknown",
	CategoryTrash:     "trash",
	CategoryPaper:     "paper",
	CategoryPlastic:   "plastic",
	CategoryMetal:     "metal",
	CategoryGlass:     "glass",
	CategoryCardboard: "cardboard",
}

// AllCategories lists every known category in enum order (unknown excluded).
func AllCategories() []Category {
	return []Category{CategoryTrash, CategoryPaper, CategoryPlastic, CategoryMetal, CategoryGlass, CategoryCardboard}
}

func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return categoryNames[CategoryUnknown]
}

// ParseCategory accepts a label in any case. Anything outside the set is
// CategoryUnknown with ok=false.
func ParseCategory(s string) (Category, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range categoryNames {
		if i == int(CategoryUnknown) {
			continue
		}
		if name == s {
			return Category(i), true
		}
	}
	return CategoryUnknown, false
}

func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Category) UnmarshalText(b []byte) error {
	v, ok := ParseCategory(string(b))
	if !ok && strings.ToLower(strings.TrimSpace(string(b))) != "unknown" {
		return fmt.Errorf("unknown category %q", string(b))
	}
	*c = v
	return nil
}
