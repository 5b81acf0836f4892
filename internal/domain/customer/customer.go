package customer

import (
	"strings"
	"unicode/utf8"

	"northwind/internal/pkg/apperrors"
)

// MaxCustomerIDLength matches the nchar(5) key of the Northwind customers table.
const MaxCustomerIDLength = 5

type Customer struct {
	CustomerID  string `json:"customerId"`
	CompanyName string `json:"companyName,omitempty"`
	ContactName string `json:"contactName,omitempty"`
	City        string `json:"city,omitempty"`
	PostalCode  string `json:"postalCode,omitempty"`
	Country     string `json:"country,omitempty"`
}

func NewCustomer(customerID, contactName, companyName, city string) *Customer {
	return &Customer{
		CustomerID:  customerID,
		ContactName: contactName,
		CompanyName: companyName,
		City:        city,
	}
}

func (c *Customer) Validate() error {
	id := strings.TrimSpace(c.CustomerID)
	if id == "" {
		return apperrors.NewValidationError("customerId", "cannot be empty")
	}
	if id != c.CustomerID {
		return apperrors.NewValidationError("customerId", "cannot contain leading or trailing spaces")
	}
	if utf8.RuneCountInString(id) > MaxCustomerIDLength {
		return apperrors.NewValidationError("customerId", "must be at most 5 characters")
	}
	return nil
}

func (c *Customer) Clone() *Customer {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// applyUpdate overwrites the fields the manager is allowed to change. Empty values are applied too.
func (c *Customer) applyUpdate(contactName, country, city, companyName string) {
	c.ContactName = contactName
	c.Country = country
	c.City = city
	c.CompanyName = companyName
}
