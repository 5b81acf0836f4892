package postgres

import (
	"errors"
	"testing"

	"northwind/internal/domain/customer"
	"northwind/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestTranslateDBError(t *testing.T) {
	logger := newTestLogger()

	tests := []struct {
		name   string
		err    error
		target error
	}{
		{name: "No Rows", err: pgx.ErrNoRows, target: customer.ErrNotFound},
		{name: "Unique Violation", err: &pgconn.PgError{Code: "23505"}, target: apperrors.ErrAlreadyExists},
		{name: "Other PgError", err: &pgconn.PgError{Code: "40P01"}, target: apperrors.ErrDatabase},
		{name: "Generic", err: errors.New("boom"), target: apperrors.ErrDatabase},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, translateDBError(tt.err, logger), tt.target)
		})
	}

	t.Run("Nil", func(t *testing.T) {
		assert.NoError(t, translateDBError(nil, logger))
	})
}
