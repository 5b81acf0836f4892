package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"northwind/internal/domain/customer"
	"northwind/internal/infrastructure/database/tracking"
	"northwind/internal/infrastructure/logging"
	"northwind/internal/infrastructure/monitoring"
	"northwind/internal/pkg/apperrors"

	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	selectCustomerByIDQuery = `
	SELECT customer_id, COALESCE(company_name, ''), COALESCE(contact_name, ''), COALESCE(city, ''), COALESCE(postal_code, ''), COALESCE(country, '')
	FROM customers
	WHERE customer_id = ?`

	selectCustomersQuery = `
	SELECT customer_id, COALESCE(company_name, ''), COALESCE(contact_name, ''), COALESCE(city, ''), COALESCE(postal_code, ''), COALESCE(country, '')
	FROM customers
	ORDER BY customer_id ASC`

	insertCustomerQuery = `
	INSERT INTO customers (customer_id, company_name, contact_name, city, postal_code, country)
	VALUES (?, NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''))`

	updateCustomerQuery = `
	UPDATE customers
	SET company_name = NULLIF(?, ''),
		contact_name = NULLIF(?, ''),
		city = NULLIF(?, ''),
		postal_code = NULLIF(?, ''),
		country = NULLIF(?, '')
	WHERE customer_id = ?`

	deleteCustomerQuery = `
	DELETE FROM customers
	WHERE customer_id = ?`
)

type CustomerRepository struct {
	db      *sql.DB
	tracker *tracking.Tracker
	logger  *slog.Logger
}

var _ customer.Repository = (*CustomerRepository)(nil)

func NewCustomerRepository(db *sql.DB, logger *slog.Logger) *CustomerRepository {
	if db == nil {
		panic("sql.DB cannot be nil for CustomerRepository")
	}
	if logger == nil {
		logger = logging.Fallback("SQLiteCustomerRepository")
	}
	return &CustomerRepository{
		db:      db,
		tracker: tracking.New(),
		logger:  logger.With("component", "SQLiteCustomerRepository"),
	}
}

func (r *CustomerRepository) GetCustomerByID(ctx context.Context, customerID string) (*customer.Customer, error) {
	startTime := time.Now()

	var c customer.Customer
	err := r.db.QueryRowContext(ctx, selectCustomerByIDQuery, customerID).Scan(
		&c.CustomerID, &c.CompanyName, &c.ContactName, &c.City, &c.PostalCode, &c.Country,
	)
	monitoring.RecordDBQuery("GetCustomerByID", monitoring.QueryStatus(err, errors.Is(err, sql.ErrNoRows)), time.Since(startTime))

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.WarnContext(ctx, "Customer not found", "customer_id", customerID)
			return nil, customer.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to get customer by ID", "customer_id", customerID, "error", err)
		return nil, r.translateError(err)
	}

	return r.tracker.Attach(&c), nil
}

func (r *CustomerRepository) GetCustomerList(ctx context.Context) ([]*customer.Customer, error) {
	startTime := time.Now()

	rows, err := r.db.QueryContext(ctx, selectCustomersQuery)
	if err != nil {
		monitoring.RecordDBQuery("GetCustomerList", monitoring.StatusError, time.Since(startTime))
		r.logger.ErrorContext(ctx, "Failed to query customers", "error", err)
		return nil, r.translateError(err)
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
	return customers, nil
}

func (r *CustomerRepository) CreateCustomer(ctx context.Context, cust *customer.Customer) error {
	if cust == nil {
		return fmt.Errorf("%w: customer cannot be nil", apperrors.ErrInvalidArgument)
	}
	startTime := time.Now()

	_, err := r.db.ExecContext(ctx, insertCustomerQuery,
		cust.CustomerID, cust.CompanyName, cust.ContactName, cust.City, cust.PostalCode, cust.Country,
	)
	monitoring.RecordDBQuery("CreateCustomer", monitoring.QueryStatus(err, false), time.Since(startTime))
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert customer", "customer_id", cust.CustomerID, "error", err)
		return r.translateError(err)
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

	affected, err := execAffected(ctx, r.db, deleteCustomerQuery, cust.CustomerID)
	status := monitoring.QueryStatus(err, false)
	if err == nil && affected == 0 {
		status = monitoring.StatusNotFound
	}
	monitoring.RecordDBQuery("RemoveCustomer", status, time.Since(startTime))

	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to delete customer", "customer_id", cust.CustomerID, "error", err)
		return r.translateError(err)
	}
	r.tracker.Detach(cust.CustomerID)
	if affected == 0 {
		r.logger.WarnContext(ctx, "Customer not found for deletion", "customer_id", cust.CustomerID)
		return customer.ErrNotFound
	}

	r.logger.InfoContext(ctx, "Customer deleted", "customer_id", cust.CustomerID)
	return nil
}

// SaveChanges writes every modified tracked customer in one transaction; see the postgres store
// for the conflict rules, which are the same here.
func (r *CustomerRepository) SaveChanges(ctx context.Context) error {
	changes := r.tracker.Changes()
	if len(changes) == 0 {
		r.logger.DebugContext(ctx, "No pending customer changes")
		return nil
	}
	startTime := time.Now()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		monitoring.RecordDBQuery("SaveChanges", monitoring.StatusError, time.Since(startTime))
		r.logger.ErrorContext(ctx, "Failed to begin transaction", slog.Any("error", err))
		return fmt.Errorf("%w: failed to begin transaction: %w", apperrors.ErrDatabase, err)
	}

	for _, c := range changes {
		affected, err := execAffected(ctx, tx, updateCustomerQuery,
			c.CompanyName, c.ContactName, c.City, c.PostalCode, c.Country, c.CustomerID,
		)
		if err != nil {
			r.rollback(ctx, tx)
			monitoring.RecordDBQuery("SaveChanges", monitoring.StatusError, time.Since(startTime))
			r.logger.ErrorContext(ctx, "Failed to update customer", "customer_id", c.CustomerID, "error", err)
			return r.translateError(err)
		}
		if affected == 0 {
			r.rollback(ctx, tx)
			monitoring.RecordDBQuery("SaveChanges", monitoring.StatusConflict, time.Since(startTime))
			r.logger.WarnContext(ctx, "Customer vanished before its changes were saved", "customer_id", c.CustomerID)
			return fmt.Errorf("customer %s: %w", c.CustomerID, customer.ErrUpdateConflict)
		}
	}

	if err := tx.Commit(); err != nil {
		monitoring.RecordDBQuery("SaveChanges", monitoring.StatusError, time.Since(startTime))
		r.logger.ErrorContext(ctx, "Failed to commit transaction", slog.Any("error", err))
		return fmt.Errorf("%w: failed to commit transaction: %w", apperrors.ErrDatabase, err)
	}
	monitoring.RecordDBQuery("SaveChanges", monitoring.StatusSuccess, time.Since(startTime))

	r.tracker.Accept(changes)
	r.logger.InfoContext(ctx, "Customer changes saved", "count", len(changes))
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func execAffected(ctx context.Context, db execer, query string, args ...any) (int64, error) {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *CustomerRepository) rollback(ctx context.Context, tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		r.logger.ErrorContext(ctx, "Failed to rollback transaction", slog.Any("error", err))
	}
}

func (r *CustomerRepository) translateError(err error) error {
	var sqliteErr *moderncsqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			r.logger.Warn("Database unique constraint violation", "detail", sqliteErr.Error())
			return fmt.Errorf("%w: %s", apperrors.ErrAlreadyExists, sqliteErr.Error())
		}
		r.logger.Error("SQLite specific error", "code", sqliteErr.Code(), "message", sqliteErr.Error())
		return fmt.Errorf("%w: db error code %d", apperrors.ErrDatabase, sqliteErr.Code())
	}
	return fmt.Errorf("%w: %w", apperrors.ErrDatabase, err)
}
