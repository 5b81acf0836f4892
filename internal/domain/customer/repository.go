package customer

import (
	"context"
	"fmt"

	"northwind/internal/pkg/apperrors"
)

var (
	ErrNotFound = fmt.Errorf("customer %w", apperrors.ErrNotFound)

	ErrUpdateConflict = fmt.Errorf("update conflict detected: %w", apperrors.ErrConflict)
)

// Repository is the data-access port of the customer domain.
//
// Entities returned by GetCustomerByID and GetCustomerList are tracked: changes made to them are
// written by the next SaveChanges. CreateCustomer and RemoveCustomer commit immediately.
type Repository interface {
	GetCustomerByID(ctx context.Context, customerID string) (*Customer, error)

	GetCustomerList(ctx context.Context) ([]*Customer, error)

	CreateCustomer(ctx context.Context, cust *Customer) error

	RemoveCustomer(ctx context.Context, cust *Customer) error

	SaveChanges(ctx context.Context) error
}
