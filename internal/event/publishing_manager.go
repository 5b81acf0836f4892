package event

import (
	"context"
	"log/slog"
	"time"

	"northwind/internal/domain/customer"
	"northwind/internal/infrastructure/logging"
)

// PublishingCustomerManager announces every successful change made through the wrapped manager.
// Publishing is best effort: a failed publish is logged and never changes the result.
type PublishingCustomerManager struct {
	customer.CustomerManager
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

var _ customer.CustomerManager = (*PublishingCustomerManager)(nil)

func NewPublishingCustomerManager(inner customer.CustomerManager, publisher EventPublisher, logger *slog.Logger) *PublishingCustomerManager {
	if inner == nil {
		panic("customer manager cannot be nil")
	}
	if publisher == nil {
		panic("event publisher cannot be nil")
	}
	if logger == nil {
		logger = logging.Fallback("PublishingCustomerManager")
	}
	return &PublishingCustomerManager{
		CustomerManager: inner,
		publisher:       publisher,
		logger:          logger.With("component", "PublishingCustomerManager"),
		now:             time.Now,
	}
}

func (m *PublishingCustomerManager) Update(ctx context.Context, customerID, contactName, country, city, companyName string) bool {
	_, ok := m.UpdateAndSelect(ctx, customerID, contactName, country, city, companyName)
	return ok
}

func (m *PublishingCustomerManager) UpdateAndSelect(ctx context.Context, customerID, contactName, country, city, companyName string) (*customer.Customer, bool) {
	updated, ok := m.CustomerManager.UpdateAndSelect(ctx, customerID, contactName, country, city, companyName)
	if !ok {
		return nil, false
	}
	m.publish(ctx, RoutingKeyCustomerUpdated, NewCustomerEventPayload(updated))
	return updated, true
}

func (m *PublishingCustomerManager) Delete(ctx context.Context, customerID string) bool {
	if !m.CustomerManager.Delete(ctx, customerID) {
		return false
	}
	m.publish(ctx, RoutingKeyCustomerDeleted, CustomerEventPayload{CustomerID: customerID})
	return true
}

func (m *PublishingCustomerManager) Create(ctx context.Context, cust *customer.Customer) error {
	if err := m.CustomerManager.Create(ctx, cust); err != nil {
		return err
	}
	m.publish(ctx, RoutingKeyCustomerCreated, NewCustomerEventPayload(cust))
	return nil
}

func (m *PublishingCustomerManager) publish(ctx context.Context, routingKey string, payload CustomerEventPayload) {
	event := CustomerEvent{Timestamp: m.now().UTC(), Payload: payload}
	if err := m.publisher.Publish(ctx, routingKey, event); err != nil {
		m.logger.WarnContext(ctx, "Failed to publish customer event", "routingKey", routingKey, "customerID", payload.CustomerID, "error", err)
	}
}
