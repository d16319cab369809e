package events

import (
	"testing"

	"github.com/Tesseract-Nexus/go-shared/events"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/TristanBaldazzi/nicolas-crm-sub000/internal/models"
)

func TestProductCreatedEvent(t *testing.T) {
	sku := "ASP-PRO-001"
	product := &models.Product{
		ID:         uuid.New(),
		Name:       "Aspirateur Pro",
		SKU:        &sku,
		Price:      decimal.RequireFromString("1234.56"),
		CategoryID: "cat-1",
		Status:     models.ProductStatusActive,
	}

	event := productCreatedEvent(product, "tenant-1", "user-1")

	assert.EqualValues(t, events.ProductCreated, event.EventType)
	assert.Equal(t, "tenant-1", event.TenantID)
	assert.Equal(t, product.ID.String(), event.ProductID)
	assert.Equal(t, "Aspirateur Pro", event.ProductName)
	assert.Equal(t, sku, event.SKU)
	assert.Equal(t, "ACTIVE", event.Status)
	assert.InDelta(t, 1234.56, event.Price, 1e-9)
	assert.Equal(t, "cat-1", event.CategoryID)
	assert.Equal(t, "user-1", event.ActorID)
	assert.Equal(t, "created", event.ChangeType)
	assert.NotEmpty(t, event.SourceID)
}

func TestProductCreatedEvent_WithoutSKU(t *testing.T) {
	event := productCreatedEvent(&models.Product{ID: uuid.New(), Name: "Lampe"}, "tenant-1", "")
	assert.Empty(t, event.SKU)
	assert.Empty(t, event.ActorID)
}
