package services

import (
	"context"
	"errors"
	"testing"

	"github.com/oakline/api/internal/domain"
)

func newContactService(t *testing.T, contacts *stubContactRepository, users *stubUserRepository) ContactService {
	t.Helper()
	service, err := NewContactService(ContactServiceDeps{
		Contacts: contacts,
		Users:    users,
	})
	if err != nil {
		t.Fatalf("new contact service: %v", err)
	}
	return service
}

func validContact() domain.Contact {
	return domain.Contact{
		CustomerID: "user-1",
		FirstName:  "Ada",
		LastName:   "Martin",
		Billing: domain.Address{
			Line1:      "1 Rue de Rivoli",
			City:       "Paris",
			PostalCode: "75001",
			Country:    "FRA",
		},
	}
}

func TestSaveContactUpsertsAndMirrorsName(t *testing.T) {
	var upserted *domain.Contact
	contacts := &stubContactRepository{
		upsertFunc: func(_ context.Context, contact domain.Contact) (domain.Contact, error) {
			upserted = &contact
			return contact, nil
		},
	}
	var namedUID, first, last string
	users := &stubUserRepository{
		updateNameFunc: func(_ context.Context, uid, firstName, lastName string) error {
			namedUID, first, last = uid, firstName, lastName
			return nil
		},
	}

	saved, err := newContactService(t, contacts, users).SaveContact(context.Background(), validContact())
	if err != nil {
		t.Fatalf("save contact: %v", err)
	}
	if upserted == nil || upserted.CustomerID != "user-1" {
		t.Fatalf("contact not stored")
	}
	if namedUID != "user-1" || first != "Ada" || last != "Martin" {
		t.Fatalf("profile name not mirrored: %s %s %s", namedUID, first, last)
	}
	if saved.Billing.Country != "FRA" {
		t.Fatalf("unexpected saved contact %+v", saved)
	}
}

func TestSaveContactProfileNameFailureIsNotFatal(t *testing.T) {
	contacts := &stubContactRepository{}
	users := &stubUserRepository{
		updateNameFunc: func(context.Context, string, string, string) error {
			return errors.New("profile store down")
		},
	}

	if _, err := newContactService(t, contacts, users).SaveContact(context.Background(), validContact()); err != nil {
		t.Fatalf("name mirror failure must not fail the save, got %v", err)
	}
}

func TestSaveContactValidation(t *testing.T) {
	service := newContactService(t, &stubContactRepository{}, &stubUserRepository{})

	missingName := validContact()
	missingName.FirstName = " "
	if _, err := service.SaveContact(context.Background(), missingName); !errors.Is(err, ErrContactInvalidInput) {
		t.Fatalf("expected invalid input for missing name, got %v", err)
	}

	missingAddress := validContact()
	missingAddress.Billing.Line1 = ""
	if _, err := service.SaveContact(context.Background(), missingAddress); !errors.Is(err, ErrContactInvalidInput) {
		t.Fatalf("expected invalid input for missing address, got %v", err)
	}

	unknownCountry := validContact()
	unknownCountry.Billing.Country = "ZZZ"
	if _, err := service.SaveContact(context.Background(), unknownCountry); !errors.Is(err, ErrContactInvalidInput) {
		t.Fatalf("expected invalid input for unknown country, got %v", err)
	}

	emptyDelivery := validContact()
	emptyDelivery.Delivery = &domain.Address{Country: "FRA"}
	if _, err := service.SaveContact(context.Background(), emptyDelivery); !errors.Is(err, ErrContactInvalidInput) {
		t.Fatalf("expected invalid input for empty delivery address, got %v", err)
	}

	badDeliveryCountry := validContact()
	badDeliveryCountry.Delivery = &domain.Address{Line1: "9 Quai Saint-Bernard", City: "Lyon", Country: "ZZZ"}
	if _, err := service.SaveContact(context.Background(), badDeliveryCountry); !errors.Is(err, ErrContactInvalidInput) {
		t.Fatalf("expected invalid input for unknown delivery country, got %v", err)
	}
}

func TestSaveContactKeepsDeliveryAddress(t *testing.T) {
	var upserted *domain.Contact
	contacts := &stubContactRepository{
		upsertFunc: func(_ context.Context, contact domain.Contact) (domain.Contact, error) {
			upserted = &contact
			return contact, nil
		},
	}

	contact := validContact()
	contact.Delivery = &domain.Address{
		Line1:      "9 Quai Saint-Bernard",
		City:       "Lyon",
		PostalCode: "69005",
		Country:    "FRA",
	}
	saved, err := newContactService(t, contacts, &stubUserRepository{}).SaveContact(context.Background(), contact)
	if err != nil {
		t.Fatalf("save contact: %v", err)
	}
	if upserted == nil || upserted.Delivery == nil || upserted.Delivery.City != "Lyon" {
		t.Fatalf("delivery address not stored: %+v", upserted)
	}
	if saved.Delivery == nil || saved.Delivery.City != "Lyon" {
		t.Fatalf("delivery address not returned: %+v", saved)
	}
}

func TestGetContactNotFound(t *testing.T) {
	service := newContactService(t, &stubContactRepository{}, &stubUserRepository{})

	if _, err := service.GetContact(context.Background(), "user-unknown"); !errors.Is(err, ErrContactNotFound) {
		t.Fatalf("expected ErrContactNotFound, got %v", err)
	}
}

func TestGetContactReturnsStoredDetails(t *testing.T) {
	contacts := &stubContactRepository{
		getFunc: func(_ context.Context, customerID string) (domain.Contact, error) {
			contact := validContact()
			contact.CustomerID = customerID
			return contact, nil
		},
	}

	contact, err := newContactService(t, contacts, &stubUserRepository{}).GetContact(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("get contact: %v", err)
	}
	if contact.FirstName != "Ada" || contact.Billing.City != "Paris" {
		t.Fatalf("unexpected contact %+v", contact)
	}
}
