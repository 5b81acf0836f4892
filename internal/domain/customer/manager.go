package customer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"northwind/internal/infrastructure/monitoring"
)

const (
	customerNotFound = "Customer not found by repository"

	operationUpdate = "update"
	operationDelete = "delete"
	operationCreate = "create"
)

// CustomerManager is the business layer over a Repository. Update and Delete never return errors:
// every outcome is reported as a boolean. The selection is held as a private copy; SelectedCustomer
// and SetSelectedCustomer copy on the way out and in.
type CustomerManager interface {
	Update(ctx context.Context, customerID, contactName, country, city, companyName string) bool
	// UpdateAndSelect is Update that also returns a copy of the committed customer, taken under the
	// same lock as the commit. It returns nil and false whenever Update would return false.
	UpdateAndSelect(ctx context.Context, customerID, contactName, country, city, companyName string) (*Customer, bool)
	Delete(ctx context.Context, customerID string) bool
	SelectedCustomer() *Customer
	SetSelectedCustomer(cust *Customer)
	Retrieve(ctx context.Context, customerID string) (*Customer, error)
	RetrieveAll(ctx context.Context) ([]*Customer, error)
	Create(ctx context.Context, cust *Customer) error
}

var _ CustomerManager = (*customerManager)(nil)

type customerManager struct {
	mu       sync.Mutex
	repo     Repository
	selected *Customer
	logger   *slog.Logger
}

func NewCustomerManager(repo Repository, logger *slog.Logger) CustomerManager {
	if repo == nil {
		panic("customer repository cannot be nil")
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		logger.Warn("Warning: No logger provided to NewCustomerManager, using default stderr handler")
	}

	return &customerManager{
		repo:   repo,
		logger: logger.With(slog.String("component", "customerManager")),
	}
}

func (m *customerManager) SelectedCustomer() *Customer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selected.Clone()
}

func (m *customerManager) SetSelectedCustomer(cust *Customer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selected = cust.Clone()
}

func (m *customerManager) Update(ctx context.Context, customerID, contactName, country, city, companyName string) bool {
	_, ok := m.UpdateAndSelect(ctx, customerID, contactName, country, city, companyName)
	return ok
}

func (m *customerManager) UpdateAndSelect(ctx context.Context, customerID, contactName, country, city, companyName string) (*Customer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	logger := m.logger.With(slog.String("customerID", customerID))
	logger.InfoContext(ctx, "Attempting to update customer")

	cust, status := m.lookup(ctx, logger, customerID)
	if cust == nil {
		monitoring.RecordCustomerOperation(operationUpdate, status)
		return nil, false
	}

	before := *cust
	cust.applyUpdate(contactName, country, city, companyName)
	logger.DebugContext(ctx, "Fields updated in memory, calling repository SaveChanges")

	if err := m.repo.SaveChanges(ctx); err != nil {
		// Roll the tracked entity back so the failed mutation is not picked up by a later commit.
		*cust = before
		logger.ErrorContext(ctx, "Repository failed to save customer changes, selection left unchanged", slog.Any("error", err))
		monitoring.RecordCustomerOperation(operationUpdate, failureStatus(err))
		return nil, false
	}

	m.selected = cust.Clone()
	logger.InfoContext(ctx, "Successfully updated customer")
	monitoring.RecordCustomerOperation(operationUpdate, monitoring.StatusSuccess)
	return m.selected.Clone(), true
}

func (m *customerManager) Delete(ctx context.Context, customerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	logger := m.logger.With(slog.String("customerID", customerID))
	logger.InfoContext(ctx, "Attempting to delete customer")

	cust, status := m.lookup(ctx, logger, customerID)
	if cust == nil {
		monitoring.RecordCustomerOperation(operationDelete, status)
		return false
	}

	logger.DebugContext(ctx, "Calling repository RemoveCustomer")
	if err := m.repo.RemoveCustomer(ctx, cust); err != nil {
		logger.ErrorContext(ctx, "Repository failed to remove customer", slog.Any("error", err))
		monitoring.RecordCustomerOperation(operationDelete, failureStatus(err))
		return false
	}

	logger.InfoContext(ctx, "Successfully deleted customer")
	monitoring.RecordCustomerOperation(operationDelete, monitoring.StatusSuccess)
	return true
}

func (m *customerManager) Retrieve(ctx context.Context, customerID string) (*Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	logger := m.logger.With(slog.String("customerID", customerID))
	logger.DebugContext(ctx, "Calling repository GetCustomerByID")

	cust, err := m.repo.GetCustomerByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			logger.WarnContext(ctx, customerNotFound)
			return nil, ErrNotFound
		}
		logger.ErrorContext(ctx, "Repository error finding customer", slog.Any("error", err))
		return nil, fmt.Errorf("failed to get customer %s: %w", customerID, err)
	}
	if cust == nil {
		logger.WarnContext(ctx, customerNotFound)
		return nil, ErrNotFound
	}

	return cust.Clone(), nil
}

func (m *customerManager) RetrieveAll(ctx context.Context) ([]*Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.DebugContext(ctx, "Calling repository GetCustomerList")
	customers, err := m.repo.GetCustomerList(ctx)
	if err != nil {
		m.logger.ErrorContext(ctx, "Repository error listing customers", slog.Any("error", err))
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}

	result := make([]*Customer, 0, len(customers))
	for _, cust := range customers {
		result = append(result, cust.Clone())
	}

	m.logger.InfoContext(ctx, "Successfully retrieved customers", slog.Int("count", len(result)))
	return result, nil
}

func (m *customerManager) Create(ctx context.Context, cust *Customer) error {
	if cust == nil {
		return errors.New("customer cannot be nil")
	}
	if err := cust.Validate(); err != nil {
		m.logger.WarnContext(ctx, "Validation failed for new customer", slog.Any("error", err))
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	logger := m.logger.With(slog.String("customerID", cust.CustomerID))
	logger.DebugContext(ctx, "Calling repository CreateCustomer")

	// The repository tracks the instance it is given, so hand it a copy the caller cannot touch.
	if err := m.repo.CreateCustomer(ctx, cust.Clone()); err != nil {
		logger.ErrorContext(ctx, "Repository failed to create customer", slog.Any("error", err))
		monitoring.RecordCustomerOperation(operationCreate, failureStatus(err))
		return fmt.Errorf("failed to create customer %s: %w", cust.CustomerID, err)
	}

	logger.InfoContext(ctx, "Successfully created customer")
	monitoring.RecordCustomerOperation(operationCreate, monitoring.StatusSuccess)
	return nil
}

// lookup returns nil when the customer is absent or the repository failed, along with the
// status label for the metrics.
func (m *customerManager) lookup(ctx context.Context, logger *slog.Logger, customerID string) (*Customer, string) {
	logger.DebugContext(ctx, "Calling repository GetCustomerByID")
	cust, err := m.repo.GetCustomerByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			logger.WarnContext(ctx, customerNotFound)
			return nil, monitoring.StatusNotFound
		}
		logger.ErrorContext(ctx, "Repository error finding customer", slog.Any("error", err))
		return nil, monitoring.StatusError
	}
	if cust == nil {
		logger.WarnContext(ctx, customerNotFound)
		return nil, monitoring.StatusNotFound
	}
	return cust, ""
}

func failureStatus(err error) string {
	switch {
	case errors.Is(err, ErrUpdateConflict):
		return monitoring.StatusConflict
	case errors.Is(err, ErrNotFound):
		return monitoring.StatusNotFound
	default:
		return monitoring.StatusError
	}
}
