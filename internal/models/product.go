package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductStatus represents the status of a product
type ProductStatus string

const (
	ProductStatusDraft    ProductStatus = "DRAFT"
	ProductStatusActive   ProductStatus = "ACTIVE"
	ProductStatusInactive ProductStatus = "INACTIVE"
	ProductStatusArchived ProductStatus = "ARCHIVED"
)

// AttributeKind is the closed set of value kinds a product attribute can hold
type AttributeKind string

const (
	AttributeText    AttributeKind = "text"
	AttributeNumber  AttributeKind = "number"
	AttributeBoolean AttributeKind = "boolean"
)

// Valid reports whether k is one of the known attribute kinds
func (k AttributeKind) Valid() bool {
	switch k {
	case AttributeText, AttributeNumber, AttributeBoolean:
		return true
	}
	return false
}

// AttributeValue is a typed attribute value. Only the field matching Kind is meaningful.
type AttributeValue struct {
	Kind   AttributeKind `json:"kind"`
	Text   string        `json:"text,omitempty"`
	Number float64       `json:"number,omitempty"`
	Bool   bool          `json:"bool,omitempty"`
}

func TextValue(s string) AttributeValue { return AttributeValue{Kind: AttributeText, Text: s} }
func NumberValue(n float64) AttributeValue { return AttributeValue{Kind: AttributeNumber, Number: n} }
func BooleanValue(b bool) AttributeValue { return AttributeValue{Kind: AttributeBoolean, Bool: b} }

// String renders the value the way it would appear in a spreadsheet cell
func (v AttributeValue) String() string {
	switch v.Kind {
	case AttributeNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case AttributeBoolean:
		return strconv.FormatBool(v.Bool)
	default:
		return v.Text
	}
}

// Attributes type for PostgreSQL JSONB holding free-form product properties
type Attributes map[string]AttributeValue

func (a Attributes) Value() (driver.Value, error) {
	if a == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(a)
}

func (a *Attributes) Scan(value interface{}) error {
	if value == nil {
		*a = make(Attributes)
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported attributes column type %T", value)
	}
	return json.Unmarshal(bytes, a)
}

// ProductImage represents a product image
type ProductImage struct {
	URL       string `json:"url"`
	Key       string `json:"key,omitempty"`
	Position  int    `json:"position"`
	IsPrimary bool   `json:"isPrimary"`
	Source    string `json:"source,omitempty"` // url, embedded
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
}

// Image sources
const (
	ImageSourceURL      = "url"
	ImageSourceEmbedded = "embedded"
)

// ProductImages type for PostgreSQL JSONB (ordered gallery)
type ProductImages []ProductImage

func (p ProductImages) Value() (driver.Value, error) {
	if p == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(p)
}

func (p *ProductImages) Scan(value interface{}) error {
	if value == nil {
		*p = make(ProductImages, 0)
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported images column type %T", value)
	}
	return json.Unmarshal(bytes, p)
}

// Product represents a product entity
// Slug is unique per tenant; the index backs the duplicate-slug retry on import
type Product struct {
	ID               uuid.UUID        `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID         string           `json:"tenantId" gorm:"not null;index:idx_products_tenant_id;index:idx_products_tenant_category;index:idx_products_tenant_slug,unique"`
	CategoryID       string           `json:"categoryId" gorm:"not null;index;index:idx_products_tenant_category"`
	SubCategoryID    *string          `json:"subCategoryId,omitempty" gorm:"index"`
	BrandID          *string          `json:"brandId,omitempty" gorm:"index"`
	Name             string           `json:"name" gorm:"not null"`
	Slug             string           `json:"slug" gorm:"not null;index:idx_products_tenant_slug,unique"`
	SKU              *string          `json:"sku,omitempty" gorm:"index"`
	Description      *string          `json:"description,omitempty"`
	ShortDescription *string          `json:"shortDescription,omitempty"`
	Price            decimal.Decimal  `json:"price" gorm:"type:numeric(12,2);not null"`
	CompareAtPrice   *decimal.Decimal `json:"compareAtPrice,omitempty" gorm:"type:numeric(12,2)"`
	Stock            int              `json:"stock" gorm:"not null;default:0"`
	InStock          bool             `json:"inStock" gorm:"not null;default:true"`
	IsFeatured       bool             `json:"isFeatured" gorm:"not null;default:false"`
	IsBestSeller     bool             `json:"isBestSeller" gorm:"not null;default:false"`
	Status           ProductStatus    `json:"status" gorm:"not null;default:'DRAFT'"`
	Images           ProductImages    `json:"images" gorm:"type:jsonb"`
	Attributes       Attributes       `json:"attributes" gorm:"type:jsonb"`
	CreatedBy        *string          `json:"createdBy,omitempty"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
	DeletedAt        gorm.DeletedAt   `json:"deletedAt,omitempty" gorm:"index"`
}

// PrimaryImage returns the primary image, if any
func (p *Product) PrimaryImage() *ProductImage {
	for i := range p.Images {
		if p.Images[i].IsPrimary {
			return &p.Images[i]
		}
	}
	return nil
}

// Category represents a product category (read-only for import lookup)
type Category struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID  string         `json:"tenantId" gorm:"column:tenant_id;not null;index"`
	Name      string         `json:"name" gorm:"not null"`
	Slug      string         `json:"slug" gorm:"not null"`
	ParentID  *uuid.UUID     `json:"parentId,omitempty" gorm:"column:parent_id"`
	Level     int            `json:"level" gorm:"not null;default:0"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"deletedAt,omitempty" gorm:"index"`
}

// Brand represents a product brand (read-only for import lookup)
type Brand struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID  string         `json:"tenantId" gorm:"column:tenant_id;not null;index"`
	Name      string         `json:"name" gorm:"not null"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"deletedAt,omitempty" gorm:"index"`
}

// AttributeDefinition is a registry-defined product property
type AttributeDefinition struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID  string         `json:"tenantId" gorm:"column:tenant_id;not null;index"`
	Name      string         `json:"name" gorm:"not null"`
	Kind      AttributeKind  `json:"kind" gorm:"not null;default:'text'"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"deletedAt,omitempty" gorm:"index"`
}

// Response models
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     Error  `json:"error"`
	Timestamp string `json:"timestamp,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

type Error struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Field   *string     `json:"field,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message *string     `json:"message,omitempty"`
}

// TableName returns the table name for the Product model
func (Product) TableName() string {
	return "products"
}

// TableName returns the table name for the Category model
func (Category) TableName() string {
	return "categories"
}

// TableName returns the table name for the Brand model
func (Brand) TableName() string {
	return "brands"
}

// TableName returns the table name for the AttributeDefinition model
func (AttributeDefinition) TableName() string {
	return "attribute_definitions"
}
