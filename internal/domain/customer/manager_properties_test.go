package customer_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"northwind/internal/domain/customer"

	"pgregory.net/rapid"
)

// memoryRepository keeps committed rows separately from the tracked entities so the properties can
// tell what SaveChanges actually persisted.
type memoryRepository struct {
	committed map[string]customer.Customer
	tracked   map[string]*customer.Customer
	failSave  bool
	saves     int
}

func newMemoryRepository(seed ...customer.Customer) *memoryRepository {
	repo := &memoryRepository{
		committed: make(map[string]customer.Customer),
		tracked:   make(map[string]*customer.Customer),
	}
	for _, c := range seed {
		repo.committed[c.CustomerID] = c
	}
	return repo
}

func (r *memoryRepository) GetCustomerByID(_ context.Context, customerID string) (*customer.Customer, error) {
	if tracked, ok := r.tracked[customerID]; ok {
		return tracked, nil
	}
	row, ok := r.committed[customerID]
	if !ok {
		return nil, customer.ErrNotFound
	}
	tracked := row
	r.tracked[customerID] = &tracked
	return &tracked, nil
}

func (r *memoryRepository) GetCustomerList(ctx context.Context) ([]*customer.Customer, error) {
	list := make([]*customer.Customer, 0, len(r.committed))
	for id := range r.committed {
		c, _ := r.GetCustomerByID(ctx, id)
		list = append(list, c)
	}
	return list, nil
}

func (r *memoryRepository) CreateCustomer(_ context.Context, cust *customer.Customer) error {
	r.committed[cust.CustomerID] = *cust
	r.tracked[cust.CustomerID] = cust
	return nil
}

func (r *memoryRepository) RemoveCustomer(_ context.Context, cust *customer.Customer) error {
	if _, ok := r.committed[cust.CustomerID]; !ok {
		return customer.ErrNotFound
	}
	delete(r.committed, cust.CustomerID)
	delete(r.tracked, cust.CustomerID)
	return nil
}

func (r *memoryRepository) SaveChanges(_ context.Context) error {
	r.saves++
	if r.failSave {
		return customer.ErrUpdateConflict
	}
	for id, c := range r.tracked {
		r.committed[id] = *c
	}
	return nil
}

func customerIDGen() *rapid.Generator[string] {
	return rapid.StringMatching(`[A-Z]{1,5}`)
}

func customerGen() *rapid.Generator[customer.Customer] {
	return rapid.Custom(func(t *rapid.T) customer.Customer {
		return customer.Customer{
			CustomerID:  customerIDGen().Draw(t, "customerID"),
			ContactName: rapid.String().Draw(t, "contactName"),
			CompanyName: rapid.String().Draw(t, "companyName"),
			City:        rapid.String().Draw(t, "city"),
			Country:     rapid.String().Draw(t, "country"),
		}
	})
}

func newPropertyManager(repo customer.Repository) customer.CustomerManager {
	return customer.NewCustomerManager(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// TestCustomerManager_AbsentIDs_Property: for ids not in the store, Update and Delete return
// false and leave the selection and the store unchanged.
func TestCustomerManager_AbsentIDs_Property(t *testing.T) {
	ctx := context.Background()

	rapid.Check(t, func(rt *rapid.T) {
		stored := customerGen().Draw(rt, "stored")
		absent := customerIDGen().Filter(func(id string) bool { return id != stored.CustomerID }).Draw(rt, "absent")
		previous := customerGen().Draw(rt, "previous")

		repo := newMemoryRepository(stored)
		manager := newPropertyManager(repo)
		manager.SetSelectedCustomer(&previous)

		if manager.Update(ctx, absent, "a", "b", "c", "d") {
			rt.Fatalf("Update(%q) on an absent id returned true", absent)
		}
		if manager.Delete(ctx, absent) {
			rt.Fatalf("Delete(%q) on an absent id returned true", absent)
		}
		if selected := manager.SelectedCustomer(); selected == nil || *selected != previous {
			rt.Fatalf("selection changed after operations on an absent id")
		}
		if len(repo.committed) != 1 || repo.committed[stored.CustomerID] != stored {
			rt.Fatalf("store changed after operations on an absent id")
		}
		if repo.saves != 0 {
			rt.Fatalf("SaveChanges called %d times for an absent id", repo.saves)
		}
	})
}

// TestCustomerManager_UpdatePresent_Property: for ids in the store, Update commits exactly the four
// fields and selects the updated entity.
func TestCustomerManager_UpdatePresent_Property(t *testing.T) {
	ctx := context.Background()

	rapid.Check(t, func(rt *rapid.T) {
		stored := customerGen().Draw(rt, "stored")
		contactName := rapid.String().Draw(rt, "contactName")
		country := rapid.String().Draw(rt, "country")
		city := rapid.String().Draw(rt, "city")
		companyName := rapid.String().Draw(rt, "companyName")

		repo := newMemoryRepository(stored)
		manager := newPropertyManager(repo)

		if !manager.Update(ctx, stored.CustomerID, contactName, country, city, companyName) {
			rt.Fatalf("Update(%q) on a present id returned false", stored.CustomerID)
		}

		want := customer.Customer{
			CustomerID:  stored.CustomerID,
			ContactName: contactName,
			Country:     country,
			City:        city,
			CompanyName: companyName,
			PostalCode:  stored.PostalCode,
		}
		if got := *manager.SelectedCustomer(); got != want {
			rt.Fatalf("selection = %+v, want %+v", got, want)
		}
		if got := repo.committed[stored.CustomerID]; got != want {
			rt.Fatalf("committed = %+v, want %+v", got, want)
		}
		if repo.saves != 1 {
			rt.Fatalf("SaveChanges called %d times, want 1", repo.saves)
		}
	})
}

// TestCustomerManager_SaveFailure_Property: when SaveChanges fails the selection is identical to its
// value before the call.
func TestCustomerManager_SaveFailure_Property(t *testing.T) {
	ctx := context.Background()

	rapid.Check(t, func(rt *rapid.T) {
		stored := customerGen().Draw(rt, "stored")
		hasSelection := rapid.Bool().Draw(rt, "hasSelection")

		repo := newMemoryRepository(stored)
		repo.failSave = true
		manager := newPropertyManager(repo)

		var previous *customer.Customer
		var snapshot customer.Customer
		if hasSelection {
			p := customerGen().Draw(rt, "previous")
			previous = &p
			snapshot = p
			manager.SetSelectedCustomer(previous)
		}

		if manager.Update(ctx, stored.CustomerID, "x", "y", "z", "w") {
			rt.Fatalf("Update returned true although SaveChanges failed")
		}

		selected := manager.SelectedCustomer()
		if (selected == nil) != (previous == nil) {
			rt.Fatalf("selection replaced after a failed save")
		}
		if previous != nil && *selected != snapshot {
			rt.Fatalf("selection mutated after a failed save: %+v", *selected)
		}
		if tracked := repo.tracked[stored.CustomerID]; *tracked != stored {
			rt.Fatalf("tracked entity kept the failed mutation: %+v", *tracked)
		}
	})
}

// TestCustomerManager_DeletePresent_Property: deleting a present id removes it from lookups and the list.
func TestCustomerManager_DeletePresent_Property(t *testing.T) {
	ctx := context.Background()

	rapid.Check(t, func(rt *rapid.T) {
		stored := customerGen().Draw(rt, "stored")

		repo := newMemoryRepository(stored)
		manager := newPropertyManager(repo)

		if !manager.Delete(ctx, stored.CustomerID) {
			rt.Fatalf("Delete(%q) on a present id returned false", stored.CustomerID)
		}
		if _, err := manager.Retrieve(ctx, stored.CustomerID); err == nil {
			rt.Fatalf("customer %q still retrievable after delete", stored.CustomerID)
		}
		all, err := manager.RetrieveAll(ctx)
		if err != nil {
			rt.Fatalf("RetrieveAll: %v", err)
		}
		if len(all) != 0 {
			rt.Fatalf("list still holds %d customers after delete", len(all))
		}
	})
}
