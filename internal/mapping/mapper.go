package mapping

import (
	"regexp"

	"github.com/TristanBaldazzi/nicolas-crm-sub000/internal/textfold"
)

// ColumnMapping maps a header to its target
type ColumnMapping map[string]FieldTarget

// Target returns the target for header, defaulting to Ignore
func (m ColumnMapping) Target(header string) FieldTarget {
	if t, ok := m[header]; ok {
		return t
	}
	return Ignore
}

// Merge returns a copy of m with every entry of override applied on top
func (m ColumnMapping) Merge(override ColumnMapping) ColumnMapping {
	merged := make(ColumnMapping, len(m)+len(override))
	for h, t := range m {
		merged[h] = t
	}
	for h, t := range override {
		merged[h] = t
	}
	return merged
}

// Wire returns the JSON-friendly form {header: "price" | "attribute:x" | "ignore"}
func (m ColumnMapping) Wire() map[string]string {
	out := make(map[string]string, len(m))
	for h, t := range m {
		out[h] = t.String()
	}
	return out
}

// ParseMapping parses a caller-supplied wire mapping
func ParseMapping(raw map[string]string) (ColumnMapping, error) {
	m := make(ColumnMapping, len(raw))
	for header, target := range raw {
		t, err := ParseFieldTarget(target)
		if err != nil {
			return nil, err
		}
		m[header] = t
	}
	return m, nil
}

// currency and tax suffixes tolerated after price-like headers ("Prix TTC", "Price EUR")
const priceSuffix = `(?: (?:eur|euro|euros|usd|gbp|ttc|ht|unitaire))*`

type fieldPattern struct {
	field Field
	re    *regexp.Regexp
}

// detection order matters: the first matching group wins. Patterns run on
// textfold.Key output, so they only ever see [a-z0-9 ].
var patterns = []fieldPattern{
	{FieldName, regexp.MustCompile(`^(?:nom|name|titre|title|libelle|intitule|designation|product name|productname|product title|nom (?:du )?produit|nom article)$`)},
	{FieldDescription, regexp.MustCompile(`^(?:description|desc|descriptif|description longue|long description|description (?:du )?produit|product description|details?)$`)},
	{FieldShortDescription, regexp.MustCompile(`^(?:description courte|courte description|short description|shortdescription|short desc|resume|summary|accroche|sous titre|subtitle)$`)},
	{FieldSKU, regexp.MustCompile(`^(?:sku|ref|reference|reference (?:produit|article)|ref (?:produit|article)|code (?:produit|article)|product code|item code)$`)},
	{FieldPrice, regexp.MustCompile(`^(?:prix|price|prix de vente|prix vente|tarif|sale price|selling price|unit price)` + priceSuffix + `$`)},
	{FieldCompareAtPrice, regexp.MustCompile(`^(?:prix barre|prix (?:d )?origine|ancien prix|prix avant (?:remise|promo|promotion)|prix conseille|prix public|compare at price|compareatprice|compare price|original price|old price|regular price|msrp|rrp)` + priceSuffix + `$`)},
	{FieldBrand, regexp.MustCompile(`^(?:marque|marques|brand|brands|fabricant|manufacturer)$`)},
	{FieldCategory, regexp.MustCompile(`^(?:categorie|categories|category|categorie principale|main category|rayon|famille)$`)},
	{FieldSubCategory, regexp.MustCompile(`^(?:sous categories?|sub ?categor(?:y|ies)|sous famille|sous rayon)$`)},
	{FieldStock, regexp.MustCompile(`^(?:stock|stocks|quantite|quantites|quantite en stock|stock disponible|quantity|qty|qte|inventaire|inventory)$`)},
	{FieldInStock, regexp.MustCompile(`^(?:en stock|in stock|instock|disponible|disponibilite|available|availability)$`)},
	{FieldFeatured, regexp.MustCompile(`^(?:vedette|en vedette|mis en avant|mise en avant|a la une|featured|highlight(?:ed)?)$`)},
	{FieldBestSeller, regexp.MustCompile(`^(?:best ?sellers?|meilleures? ventes?|top ventes?|populaire)$`)},
	{FieldImages, regexp.MustCompile(`^(?:images?|photos?|visuels?|pictures?|image principale|main image|(?:url|lien)s? (?:des )?(?:images?|photos?)|(?:images?|photos?) (?:url|lien)s?)$`)},
}

// DetectField runs the pattern groups against a header
func DetectField(header string) (Field, bool) {
	key := textfold.Key(header)
	if key == "" {
		return "", false
	}
	for _, p := range patterns {
		if p.re.MatchString(key) {
			return p.field, true
		}
	}
	return "", false
}

// AutoDetect suggests a mapping for headers. Headers matching no canonical
// field become attributes, so unknown columns flow through instead of being
// dropped. knownAttributes supplies registry spellings: a header that folds to
// the same key as a registry attribute takes the registry's name.
func AutoDetect(headers []string, knownAttributes []string) ColumnMapping {
	registry := make(map[string]string, len(knownAttributes))
	for _, name := range knownAttributes {
		if k := textfold.Key(name); k != "" {
			registry[k] = name
		}
	}

	m := make(ColumnMapping, len(headers))
	for _, h := range headers {
		if h == "" {
			continue
		}
		if _, seen := m[h]; seen {
			continue
		}
		if f, ok := DetectField(h); ok {
			m[h] = Canonical(f)
			continue
		}
		if name, ok := registry[textfold.Key(h)]; ok {
			m[h] = Attribute(name)
			continue
		}
		m[h] = Attribute(h)
	}
	return m
}
