package mapping

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownField is returned when a mapping names a canonical field that does not exist
var ErrUnknownField = errors.New("unknown canonical field")

// Field is a canonical product field an import column can populate
type Field string

const (
	FieldName             Field = "name"
	FieldDescription      Field = "description"
	FieldShortDescription Field = "shortDescription"
	FieldSKU              Field = "sku"
	FieldPrice            Field = "price"
	FieldCompareAtPrice   Field = "compareAtPrice"
	FieldBrand            Field = "brand"
	FieldCategory         Field = "category"
	FieldSubCategory      Field = "subCategory"
	FieldStock            Field = "stock"
	FieldInStock          Field = "inStock"
	FieldFeatured         Field = "featured"
	FieldBestSeller       Field = "bestSeller"
	FieldImages           Field = "images"
)

// Fields returns every canonical field in detection order
func Fields() []Field {
	return []Field{
		FieldName, FieldDescription, FieldShortDescription, FieldSKU,
		FieldPrice, FieldCompareAtPrice, FieldBrand, FieldCategory,
		FieldSubCategory, FieldStock, FieldInStock, FieldFeatured,
		FieldBestSeller, FieldImages,
	}
}

// ParseField resolves a canonical field name case-insensitively
func ParseField(s string) (Field, error) {
	for _, f := range Fields() {
		if strings.EqualFold(string(f), strings.TrimSpace(s)) {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, s)
}

// TargetKind discriminates FieldTarget
type TargetKind int

const (
	TargetCanonical TargetKind = iota
	TargetAttribute
	TargetIgnore
)

const (
	attributePrefix = "attribute:"
	ignoreToken     = "ignore"
)

// FieldTarget is where a column's values go: a canonical field, a named
// attribute, or nowhere.
type FieldTarget struct {
	Kind      TargetKind
	Field     Field
	Attribute string
}

// Canonical targets a canonical field
func Canonical(f Field) FieldTarget {
	return FieldTarget{Kind: TargetCanonical, Field: f}
}

// Attribute targets a free-form attribute
func Attribute(name string) FieldTarget {
	return FieldTarget{Kind: TargetAttribute, Attribute: name}
}

// Ignore drops the column
var Ignore = FieldTarget{Kind: TargetIgnore}

// String returns the wire form: "price", "attribute:Couleur", "ignore"
func (t FieldTarget) String() string {
	switch t.Kind {
	case TargetCanonical:
		return string(t.Field)
	case TargetAttribute:
		return attributePrefix + t.Attribute
	default:
		return ignoreToken
	}
}

// ParseFieldTarget parses the wire form of a target
func ParseFieldTarget(s string) (FieldTarget, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, ignoreToken) {
		return Ignore, nil
	}
	if len(s) >= len(attributePrefix) && strings.EqualFold(s[:len(attributePrefix)], attributePrefix) {
		name := strings.TrimSpace(s[len(attributePrefix):])
		if name == "" {
			return FieldTarget{}, fmt.Errorf("attribute target needs a name: %q", s)
		}
		return Attribute(name), nil
	}
	f, err := ParseField(s)
	if err != nil {
		return FieldTarget{}, err
	}
	return Canonical(f), nil
}

func (t FieldTarget) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *FieldTarget) UnmarshalText(b []byte) error {
	parsed, err := ParseFieldTarget(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
