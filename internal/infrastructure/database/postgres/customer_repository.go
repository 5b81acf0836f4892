package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"northwind/internal/domain/customer"
	"northwind/internal/infrastructure/database/tracking"
	"northwind/internal/infrastructure/logging"
	"northwind/internal/infrastructure/monitoring"
	"northwind/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5"
)

const (
	selectCustomerByIDQuery = `
	SELECT customer_id, COALESCE(company_name, ''), COALESCE(contact_name, ''), COALESCE(city, ''), COALESCE(postal_code, ''), COALESCE(country, '')
	FROM customers
	WHERE customer_id = $1`

	selectCustomersQuery = `
	SELECT customer_id, COALESCE(company_name, ''), COALESCE(contact_name, ''), COALESCE(city, ''), COALESCE(postal_code, ''), COALESCE(country, '')
	FROM customers
	ORDER BY customer_id ASC`

	insertCustomerQuery = `
	INSERT INTO customers (customer_id, company_name, contact_name, city, postal_code, country)
	VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''))`

	updateCustomerQuery = `
	UPDATE customers
	SET company_name = NULLIF($1, ''),
		contact_name = NULLIF($2, ''),
		city = NULLIF($3, ''),
		postal_code = NULLIF($4, ''),
		country = NULLIF($5, '')
	WHERE customer_id = $6`

	deleteCustomerQuery = `
	DELETE FROM customers
	WHERE customer_id = $1`
)

type CustomerRepository struct {
	db      DBPool
	tracker *tracking.Tracker
	logger  *slog.Logger
}

var _ customer.Repository = (*CustomerRepository)(nil)

func NewCustomerRepository(db DBPool, logger *slog.Logger) *CustomerRepository {
	if db == nil {
		panic("DBPool cannot be nil for CustomerRepository")
	}
	if logger == nil {
		logger = logging.Fallback("CustomerRepository")
	}
	return &CustomerRepository{
		db:      db,
		tracker: tracking.New(),
		logger:  logger.With("component", "CustomerRepository"),
	}
}

func (r *CustomerRepository) GetCustomerByID(ctx context.Context, customerID string) (*customer.Customer, error) {
	startTime := time.Now()

	var c customer.Customer
	err := r.db.QueryRow(ctx, selectCustomerByIDQuery, customerID).Scan(
		&c.CustomerID, &c.CompanyName, &c.ContactName, &c.City, &c.PostalCode, &c.Country,
	)
	monitoring.RecordDBQuery("GetCustomerByID", monitoring.QueryStatus(err, errors.Is(err, pgx.ErrNoRows)), time.Since(startTime))

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Customer not found", "customer_id", customerID)
			return nil, customer.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to get customer by ID", "customer_id", customerID, "error", err)
		return nil, translateDBError(err, r.logger)
	}

	return r.tracker.Attach(&c), nil
}

func (r *CustomerRepository) GetCustomerList(ctx context.Context) ([]*customer.Customer, error) {
	startTime := time.Now()

	rows, err := r.db.Query(ctx, selectCustomersQuery)
	if err != nil {
		monitoring.RecordDBQuery("GetCustomerList", monitoring.StatusError, time.Since(startTime))
		r.logger.ErrorContext(ctx, "Failed to query customers", "error", err)
		return nil, translateDBError(err, r.logger)
	}
	defer rows.Close()

	loaded := make([]*customer.Customer, 0)
	for rows.Next() {
		var c customer.Customer
		if err := rows.Scan(&c.CustomerID, &c.CompanyName, &c.ContactName, &c.City, &c.PostalCode, &c.Country); err != nil {
			monitoring.RecordDBQuery("GetCustomerList", monitoring.StatusError, time.Since(startTime))
			r.logger.ErrorContext(ctx, "Failed to scan customer row", "error", err)
			return nil, fmt.Errorf("%w: failed to scan customer row: %w", apperrors.ErrDatabase, err)
		}
		loaded = append(loaded, &c)
	}
	if err := rows.Err(); err != nil {
		monitoring.RecordDBQuery("GetCustomerList", monitoring.StatusError, time.Since(startTime))
		r.logger.ErrorContext(ctx, "Error iterating customer rows", "error", err)
		return nil, fmt.Errorf("%w: error iterating customer rows: %w", apperrors.ErrDatabase, err)
	}
	monitoring.RecordDBQuery("GetCustomerList", monitoring.StatusSuccess, time.Since(startTime))

	customers := make([]*customer.Customer, 0, len(loaded))
	for _, c := range loaded {
		customers = append(customers, r.tracker.Attach(c))
	}
	r.logger.DebugContext(ctx, "Loaded customers", "count", len(customers))
	return customers, nil
}

func (r *CustomerRepository) CreateCustomer(ctx context.Context, cust *customer.Customer) error {
	if cust == nil {
		return fmt.Errorf("%w: customer cannot be nil", apperrors.ErrInvalidArgument)
	}
	startTime := time.Now()

	_, err := r.db.Exec(ctx, insertCustomerQuery,
		cust.CustomerID, cust.CompanyName, cust.ContactName, cust.City, cust.PostalCode, cust.Country,
	)
	monitoring.RecordDBQuery("CreateCustomer", monitoring.QueryStatus(err, false), time.Since(startTime))
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert customer", "customer_id", cust.CustomerID, "error", err)
		return translateDBError(err, r.logger)
	}

	r.tracker.Attach(cust)
	r.logger.InfoContext(ctx, "Customer created", "customer_id", cust.CustomerID)
	return nil
}

func (r *CustomerRepository) RemoveCustomer(ctx context.Context, cust *customer.Customer) error {
	if cust == nil {
		return fmt.Errorf("%w: customer cannot be nil", apperrors.ErrInvalidArgument)
	}
	startTime := time.Now()

	cmdTag, err := r.db.Exec(ctx, deleteCustomerQuery, cust.CustomerID)
	notFound := err == nil && cmdTag.RowsAffected() == 0
	status := monitoring.QueryStatus(err, false)
	if notFound {
		status = monitoring.StatusNotFound
	}
	monitoring.RecordDBQuery("RemoveCustomer", status, time.Since(startTime))
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to delete customer", "customer_id", cust.CustomerID, "error", err)
		return translateDBError(err, r.logger)
	}
	if notFound {
		r.logger.WarnContext(ctx, "Customer not found for deletion", "customer_id", cust.CustomerID)
		r.tracker.Detach(cust.CustomerID)
		return customer.ErrNotFound
	}

	r.tracker.Detach(cust.CustomerID)
	r.logger.InfoContext(ctx, "Customer deleted", "customer_id", cust.CustomerID)
	return nil
}

// SaveChanges writes every modified tracked customer in a single transaction. A row that no longer
// exists aborts the whole commit with customer.ErrUpdateConflict and the changes stay pending.
func (r *CustomerRepository) SaveChanges(ctx context.Context) error {
	changes := r.tracker.Changes()
	if len(changes) == 0 {
		r.logger.DebugContext(ctx, "No pending customer changes")
		return nil
	}
	startTime := time.Now()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		monitoring.RecordDBQuery("SaveChanges", monitoring.StatusError, time.Since(startTime))
		r.logger.ErrorContext(ctx, "Failed to begin transaction", slog.Any("error", err))
		return fmt.Errorf("%w: failed to begin transaction: %w", apperrors.ErrDatabase, err)
	}

	for _, c := range changes {
		cmdTag, err := tx.Exec(ctx, updateCustomerQuery,
			c.CompanyName, c.ContactName, c.City, c.PostalCode, c.Country, c.CustomerID,
		)
		if err != nil {
			r.rollback(ctx, tx)
			monitoring.RecordDBQuery("SaveChanges", monitoring.StatusError, time.Since(startTime))
			r.logger.ErrorContext(ctx, "Failed to update customer", "customer_id", c.CustomerID, "error", err)
			return translateDBError(err, r.logger)
		}
		if cmdTag.RowsAffected() == 0 {
			r.rollback(ctx, tx)
			monitoring.RecordDBQuery("SaveChanges", monitoring.StatusConflict, time.Since(startTime))
			r.logger.WarnContext(ctx, "Customer vanished before its changes were saved", "customer_id", c.CustomerID)
			return fmt.Errorf("customer %s: %w", c.CustomerID, customer.ErrUpdateConflict)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		monitoring.RecordDBQuery("SaveChanges", monitoring.StatusError, time.Since(startTime))
		r.logger.ErrorContext(ctx, "Failed to commit transaction", slog.Any("error", err))
		return fmt.Errorf("%w: failed to commit transaction: %w", apperrors.ErrDatabase, err)
	}
	monitoring.RecordDBQuery("SaveChanges", monitoring.StatusSuccess, time.Since(startTime))

	r.tracker.Accept(changes)
	r.logger.InfoContext(ctx, "Customer changes saved", "count", len(changes))
	return nil
}

func (r *CustomerRepository) rollback(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		r.logger.ErrorContext(ctx, "Failed to rollback transaction", slog.Any("error", err))
	}
}
