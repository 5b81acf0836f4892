package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"northwind/internal/api/handler/dto"
	"northwind/internal/domain/customer"
	"northwind/internal/pkg/apperrors"

	"github.com/go-chi/chi/v5"
)

const (
	codeUpdateRejected = "UPDATE_REJECTED"
	codeNotDeleted     = "NOT_DELETED"
	codeNoSelection    = "NO_SELECTION"
)

type CustomerHandler struct {
	manager customer.CustomerManager
	logger  *slog.Logger
}

func NewCustomerHandler(m customer.CustomerManager, l *slog.Logger) *CustomerHandler {
	if m == nil {
		panic("customer manager cannot be nil")
	}
	if l == nil {
		panic("logger cannot be nil")
	}
	return &CustomerHandler{
		manager: m,
		logger:  l.With("component", "CustomerHandler"),
	}
}

func getCustomerIDFromURL(r *http.Request) (string, error) {
	id := chi.URLParam(r, "customerID")
	if id == "" {
		return "", fmt.Errorf("%w: customerID not found in URL path", apperrors.ErrInvalidArgument)
	}
	return id, nil
}

// CreateCustomer handles POST /customers
func (h *CustomerHandler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	h.logger.DebugContext(r.Context(), "Received create customer request")

	var req dto.CreateCustomerRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to decode request body", slog.Any("error", err))
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	cust := req.ToCustomer()
	if err := h.manager.Create(r.Context(), cust); err != nil {
		level := slog.LevelError
		if errors.Is(err, apperrors.ErrValidation) || errors.Is(err, apperrors.ErrAlreadyExists) {
			level = slog.LevelWarn
		}
		h.logger.Log(r.Context(), level, "Manager failed to create customer", slog.Any("error", err))
		respondError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Customer created successfully", slog.String("customerID", cust.CustomerID))
	respondJSON(w, http.StatusCreated, dto.NewCustomerResponse(cust))
}

// GetCustomer handles GET /customers/{customerID}
func (h *CustomerHandler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	customerID, err := getCustomerIDFromURL(r)
	if err != nil {
		h.logger.WarnContext(r.Context(), "Failed to get customer ID from URL", slog.Any("error", err))
		respondError(w, err)
		return
	}
	logger := h.logger.With(slog.String("customerID", customerID))

	cust, err := h.manager.Retrieve(r.Context(), customerID)
	if err != nil {
		level := slog.LevelWarn
		if !errors.Is(err, customer.ErrNotFound) {
			level = slog.LevelError
		}
		logger.Log(r.Context(), level, "Manager failed to get customer", slog.Any("error", err))
		respondError(w, err)
		return
	}

	logger.DebugContext(r.Context(), "Customer retrieved successfully")
	respondJSON(w, http.StatusOK, dto.NewCustomerResponse(cust))
}

// ListCustomers handles GET /customers
func (h *CustomerHandler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.manager.RetrieveAll(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Manager failed to list customers", slog.Any("error", err))
		respondError(w, err)
		return
	}

	h.logger.DebugContext(r.Context(), "Customers listed successfully", slog.Int("count", len(customers)))
	respondJSON(w, http.StatusOK, dto.NewCustomerListResponse(customers))
}

// UpdateCustomer handles PUT /customers/{customerID}. The manager only reports success or failure,
// so every rejection is answered with the same 422.
func (h *CustomerHandler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	customerID, err := getCustomerIDFromURL(r)
	if err != nil {
		h.logger.WarnContext(r.Context(), "Failed to get customer ID from URL", slog.Any("error", err))
		respondError(w, err)
		return
	}
	logger := h.logger.With(slog.String("customerID", customerID))

	var req dto.UpdateCustomerRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.WarnContext(r.Context(), "Failed to decode request body", slog.Any("error", err))
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	updated, ok := h.manager.UpdateAndSelect(r.Context(), customerID, req.ContactName, req.Country, req.City, req.CompanyName)
	if !ok {
		logger.WarnContext(r.Context(), "Customer update rejected")
		respondMessage(w, http.StatusUnprocessableEntity, codeUpdateRejected, "update rejected")
		return
	}

	logger.InfoContext(r.Context(), "Customer updated successfully")
	respondJSON(w, http.StatusOK, dto.NewCustomerResponse(updated))
}

// DeleteCustomer handles DELETE /customers/{customerID}
func (h *CustomerHandler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	customerID, err := getCustomerIDFromURL(r)
	if err != nil {
		h.logger.WarnContext(r.Context(), "Failed to get customer ID from URL", slog.Any("error", err))
		respondError(w, err)
		return
	}
	logger := h.logger.With(slog.String("customerID", customerID))

	if !h.manager.Delete(r.Context(), customerID) {
		logger.WarnContext(r.Context(), "Customer not deleted")
		respondMessage(w, http.StatusNotFound, codeNotDeleted, "customer not deleted")
		return
	}

	logger.InfoContext(r.Context(), "Customer deleted successfully")
	w.WriteHeader(http.StatusNoContent)
}

// GetSelectedCustomer handles GET /customers/selected
func (h *CustomerHandler) GetSelectedCustomer(w http.ResponseWriter, r *http.Request) {
	selected := h.manager.SelectedCustomer()
	if selected == nil {
		respondMessage(w, http.StatusNotFound, codeNoSelection, "no customer selected")
		return
	}
	respondJSON(w, http.StatusOK, dto.NewCustomerResponse(selected))
}
