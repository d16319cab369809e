package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/TristanBaldazzi/nicolas-crm-sub000/internal/models"
	"github.com/TristanBaldazzi/nicolas-crm-sub000/internal/textfold"
)

// RegistrySource lists the category, brand and attribute registries of a tenant
type RegistrySource interface {
	ListCategories(ctx context.Context, tenantID string) ([]models.Category, error)
	ListBrands(ctx context.Context, tenantID string) ([]models.Brand, error)
	ListAttributeDefinitions(ctx context.Context, tenantID string) ([]models.AttributeDefinition, error)
}

// Registry is a read-only snapshot of a tenant's registries, taken once per
// import. Edits made while an import runs are not seen by that import.
type Registry struct {
	categoryByID  map[uuid.UUID]*models.Category
	categoryByKey map[string][]*models.Category
	brandByID     map[uuid.UUID]*models.Brand
	brandByKey    map[string]*models.Brand
	attributes    map[string]models.AttributeDefinition
	attrNames     []string
}

// LoadRegistry snapshots the registries of tenantID
func LoadRegistry(ctx context.Context, src RegistrySource, tenantID string) (*Registry, error) {
	categories, err := src.ListCategories(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}
	brands, err := src.ListBrands(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load brands: %w", err)
	}
	defs, err := src.ListAttributeDefinitions(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load attribute definitions: %w", err)
	}
	return NewRegistry(categories, brands, defs), nil
}

// NewRegistry indexes registry rows for lookup by id, name or slug
func NewRegistry(categories []models.Category, brands []models.Brand, defs []models.AttributeDefinition) *Registry {
	r := &Registry{
		categoryByID:  make(map[uuid.UUID]*models.Category, len(categories)),
		categoryByKey: make(map[string][]*models.Category, len(categories)),
		brandByID:     make(map[uuid.UUID]*models.Brand, len(brands)),
		brandByKey:    make(map[string]*models.Brand, len(brands)),
		attributes:    make(map[string]models.AttributeDefinition, len(defs)),
	}

	for i := range categories {
		c := &categories[i]
		r.categoryByID[c.ID] = c
		keys := []string{textfold.Key(c.Name)}
		if k := textfold.Key(c.Slug); k != keys[0] {
			keys = append(keys, k)
		}
		for _, k := range keys {
			if k != "" {
				r.categoryByKey[k] = append(r.categoryByKey[k], c)
			}
		}
	}

	for i := range brands {
		b := &brands[i]
		r.brandByID[b.ID] = b
		if k := textfold.Key(b.Name); k != "" {
			if _, dup := r.brandByKey[k]; !dup {
				r.brandByKey[k] = b
			}
		}
	}

	for _, d := range defs {
		k := textfold.Key(d.Name)
		if k == "" {
			continue
		}
		if _, dup := r.attributes[k]; dup {
			continue
		}
		if !d.Kind.Valid() {
			d.Kind = models.AttributeText
		}
		r.attributes[k] = d
		r.attrNames = append(r.attrNames, d.Name)
	}

	return r
}

func (r *Registry) categoryCandidates(value string) []*models.Category {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if id, err := uuid.Parse(value); err == nil {
		if c, ok := r.categoryByID[id]; ok {
			return []*models.Category{c}
		}
	}
	return r.categoryByKey[textfold.Key(value)]
}

// Category resolves a category cell by id, name or slug. When several
// categories share a name the top-level one wins.
func (r *Registry) Category(value string) (*models.Category, bool) {
	candidates := r.categoryCandidates(value)
	if len(candidates) == 0 {
		return nil, false
	}
	best := candidates[0]
	for _, c := range candidates {
		if c.ParentID == nil {
			return c, true
		}
		if c.Level < best.Level {
			best = c
		}
	}
	return best, true
}

// SubCategory resolves a sub-category cell, preferring a child of parent
func (r *Registry) SubCategory(value string, parent *models.Category) (*models.Category, bool) {
	var fallback *models.Category
	for _, c := range r.categoryCandidates(value) {
		if parent != nil && c.ID == parent.ID {
			continue
		}
		if parent != nil && c.ParentID != nil && *c.ParentID == parent.ID {
			return c, true
		}
		if fallback == nil {
			fallback = c
		}
	}
	return fallback, fallback != nil
}

// Brand resolves a brand cell by id or name
func (r *Registry) Brand(value string) (*models.Brand, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, false
	}
	if id, err := uuid.Parse(value); err == nil {
		if b, ok := r.brandByID[id]; ok {
			return b, true
		}
	}
	b, ok := r.brandByKey[textfold.Key(value)]
	return b, ok
}

// Attribute looks up a registry attribute by name, ignoring case and accents
func (r *Registry) Attribute(name string) (models.AttributeDefinition, bool) {
	d, ok := r.attributes[textfold.Key(name)]
	return d, ok
}

// AttributeNames returns the registry spellings of every attribute
func (r *Registry) AttributeNames() []string {
	return r.attrNames
}
