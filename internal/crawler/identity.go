package crawler

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

const identitySeparator = "::"

// Identity is the stable merge key of an entry: its name within a category.
// Rank is deliberately excluded since it shifts between runs.
type Identity struct {
	Name     string
	Category Category
}

// NewIdentity builds an Identity with a normalized category.
func NewIdentity(name string, category Category) Identity {
	return Identity{Name: strings.TrimSpace(name), Category: NormalizeCategory(string(category))}
}

// Key renders the identity as the string used in the persisted cache.
func (i Identity) Key() string {
	return string(i.Category) + identitySeparator + foldName(i.Name)
}

// String implements fmt.Stringer.
func (i Identity) String() string {
	return i.Key()
}

// NormalizeCategory maps the spellings seen across list versions onto the canonical categories.
// Unrecognised values are returned trimmed.
func NormalizeCategory(raw string) Category {
	cleaned := strings.TrimSpace(raw)
	switch strings.ToLower(cleaned) {
	case "south", "south america", "secondary", "secondary-region":
		return CategorySouthAmerica
	case "top 100", "top100", "main", "primary":
		return CategoryTop100
	default:
		return Category(cleaned)
	}
}

// foldName case-folds and keeps only letters and digits.
func foldName(name string) string {
	folded := cases.Fold().String(name)
	var sb strings.Builder
	sb.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
