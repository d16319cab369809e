package events

import (
	"context"
	"fmt"
	"time"

	"github.com/Tesseract-Nexus/go-shared/events"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/TristanBaldazzi/nicolas-crm-sub000/internal/models"
)

// DefaultNATSURL is the in-cluster NATS service
const DefaultNATSURL = "nats://nats.nats.svc.cluster.local:4222"

// Publisher wraps the go-shared events publisher for imported products
type Publisher struct {
	publisher *events.Publisher
	logger    *logrus.Entry
}

// NewPublisher connects to NATS and makes sure the products stream exists
func NewPublisher(natsURL string, logger *logrus.Logger) (*Publisher, error) {
	if natsURL == "" {
		natsURL = DefaultNATSURL
	}

	config := events.DefaultPublisherConfig(natsURL)
	config.Name = "products-import-service"

	publisher, err := events.NewPublisher(config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create events publisher: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := publisher.EnsureStream(ctx, events.StreamProducts, []string{"product.>"}); err != nil {
		logger.WithError(err).Warn("Failed to ensure products stream (may already exist)")
	}

	return &Publisher{
		publisher: publisher,
		logger:    logger.WithField("component", "product_events"),
	}, nil
}

// Close closes the NATS connection
func (p *Publisher) Close() {
	if p.publisher != nil {
		p.publisher.Close()
	}
}

// PublishProductCreated publishes a product.created event for an imported row.
// Publishing runs in the background so a slow broker never holds up the import.
func (p *Publisher) PublishProductCreated(ctx context.Context, product *models.Product, tenantID, actorID string) error {
	event := productCreatedEvent(product, tenantID, actorID)

	go func() {
		pubCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := p.publisher.PublishProduct(pubCtx, event); err != nil {
			p.logger.WithFields(logrus.Fields{
				"eventType": event.EventType,
				"productID": event.ProductID,
				"tenantID":  event.TenantID,
			}).WithError(err).Error("Failed to publish product event")
			return
		}
		p.logger.WithFields(logrus.Fields{
			"eventType": event.EventType,
			"productID": event.ProductID,
			"tenantID":  event.TenantID,
		}).Debug("Product event published")
	}()

	return nil
}

func productCreatedEvent(product *models.Product, tenantID, actorID string) *events.ProductEvent {
	event := events.NewProductEvent(events.ProductCreated, tenantID)
	event.SourceID = uuid.New().String()
	event.ProductID = product.ID.String()
	event.ProductName = product.Name
	if product.SKU != nil {
		event.SKU = *product.SKU
	}
	event.Status = string(product.Status)
	event.Price = product.Price.InexactFloat64()
	event.CategoryID = product.CategoryID
	event.ActorID = actorID
	event.ChangeType = "created"
	return event
}
