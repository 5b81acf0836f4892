package event

import (
	"time"

	"northwind/internal/domain/customer"
)

const (
	RoutingKeyCustomerCreated = "customer.created"
	RoutingKeyCustomerUpdated = "customer.updated"
	RoutingKeyCustomerDeleted = "customer.deleted"
)

type CustomerEventPayload struct {
	CustomerID  string `json:"customerId"`
	CompanyName string `json:"companyName,omitempty"`
	ContactName string `json:"contactName,omitempty"`
	City        string `json:"city,omitempty"`
	PostalCode  string `json:"postalCode,omitempty"`
	Country     string `json:"country,omitempty"`
}

func NewCustomerEventPayload(c *customer.Customer) CustomerEventPayload {
	return CustomerEventPayload{
		CustomerID:  c.CustomerID,
		CompanyName: c.CompanyName,
		ContactName: c.ContactName,
		City:        c.City,
		PostalCode:  c.PostalCode,
		Country:     c.Country,
	}
}

// CustomerEvent is the envelope of every message on the customer exchange; the routing key tells
// the kind of change.
type CustomerEvent struct {
	Timestamp time.Time            `json:"timestamp"`
	Payload   CustomerEventPayload `json:"payload"`
}
