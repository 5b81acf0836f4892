package dto

import (
	"fmt"
	"strings"

	"northwind/internal/domain/customer"
)

type CreateCustomerRequest struct {
	CustomerID  string `json:"customerId"`
	CompanyName string `json:"companyName"`
	ContactName string `json:"contactName"`
	City        string `json:"city"`
	PostalCode  string `json:"postalCode"`
	Country     string `json:"country"`
}

func (r *CreateCustomerRequest) ToCustomer() *customer.Customer {
	return &customer.Customer{
		CustomerID:  r.CustomerID,
		CompanyName: r.CompanyName,
		ContactName: r.ContactName,
		City:        r.City,
		PostalCode:  r.PostalCode,
		Country:     r.Country,
	}
}

// UpdateCustomerRequest carries the four fields an update overwrites. Omitted fields are written
// as empty values.
type UpdateCustomerRequest struct {
	ContactName string `json:"contactName"`
	Country     string `json:"country"`
	City        string `json:"city"`
	CompanyName string `json:"companyName"`
}

type CustomerResponse struct {
	CustomerID  string `json:"customerId"`
	CompanyName string `json:"companyName"`
	ContactName string `json:"contactName"`
	City        string `json:"city"`
	PostalCode  string `json:"postalCode"`
	Country     string `json:"country"`
}

func NewCustomerResponse(cust *customer.Customer) CustomerResponse {
	if cust == nil {

		return CustomerResponse{}
	}

	return CustomerResponse{
		CustomerID:  cust.CustomerID,
		CompanyName: cust.CompanyName,
		ContactName: cust.ContactName,
		City:        cust.City,
		PostalCode:  cust.PostalCode,
		Country:     cust.Country,
	}
}

func NewCustomerListResponse(customers []*customer.Customer) []CustomerResponse {
	resp := make([]CustomerResponse, 0, len(customers))
	for _, c := range customers {
		resp = append(resp, NewCustomerResponse(c))
	}
	return resp
}

type TokenRequest struct {
	Username string `json:"username"`
}

func (r *TokenRequest) Validate() error {
	if strings.TrimSpace(r.Username) == "" {
		return fmt.Errorf("username is required")
	}
	return nil
}

type TokenResponse struct {
	Token string `json:"token"`
}

type ErrorDetail struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}
