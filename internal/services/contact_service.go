package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/oakline/api/internal/domain"
	"github.com/oakline/api/internal/reference"
	"github.com/oakline/api/internal/repositories"
)

// ErrContactInvalidInput signals malformed contact details.
var ErrContactInvalidInput = errors.New("contact: invalid input")

// ContactServiceDeps wires the contact service dependencies.
type ContactServiceDeps struct {
	Contacts repositories.ContactRepository
	Users    repositories.UserRepository
	Logger   Logger
}

type contactService struct {
	contacts repositories.ContactRepository
	users    repositories.UserRepository
	logger   Logger
}

// NewContactService constructs the customer contact service.
func NewContactService(deps ContactServiceDeps) (ContactService, error) {
	if deps.Contacts == nil {
		return nil, errors.New("contact service requires contact repository")
	}
	if deps.Users == nil {
		return nil, errors.New("contact service requires user repository")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &contactService{
		contacts: deps.Contacts,
		users:    deps.Users,
		logger:   logger,
	}, nil
}

func (s *contactService) GetContact(ctx context.Context, customerID string) (domain.Contact, error) {
	contact, err := s.contacts.Get(ctx, strings.TrimSpace(customerID))
	if err != nil {
		if repositories.IsNotFound(err) {
			return domain.Contact{}, fmt.Errorf("%w: %s", ErrContactNotFound, customerID)
		}
		return domain.Contact{}, fmt.Errorf("contact: load: %w", err)
	}
	return contact, nil
}

// SaveContact stores the contact details and mirrors the billing name onto
// the user profile so the display name tracks what the customer last entered.
func (s *contactService) SaveContact(ctx context.Context, contact domain.Contact) (domain.Contact, error) {
	if strings.TrimSpace(contact.CustomerID) == "" {
		return domain.Contact{}, fmt.Errorf("%w: customer id is required", ErrContactInvalidInput)
	}
	if strings.TrimSpace(contact.FirstName) == "" || strings.TrimSpace(contact.LastName) == "" {
		return domain.Contact{}, fmt.Errorf("%w: first and last name are required", ErrContactInvalidInput)
	}
	if strings.TrimSpace(contact.Billing.Line1) == "" || strings.TrimSpace(contact.Billing.City) == "" {
		return domain.Contact{}, fmt.Errorf("%w: billing address is required", ErrContactInvalidInput)
	}
	if _, ok := reference.CountryAlpha2(contact.Billing.Country); !ok {
		return domain.Contact{}, fmt.Errorf("%w: unknown country %q", ErrContactInvalidInput, contact.Billing.Country)
	}
	if contact.Delivery != nil {
		if strings.TrimSpace(contact.Delivery.Line1) == "" || strings.TrimSpace(contact.Delivery.City) == "" {
			return domain.Contact{}, fmt.Errorf("%w: delivery address needs a street and city", ErrContactInvalidInput)
		}
		if _, ok := reference.CountryAlpha2(contact.Delivery.Country); !ok {
			return domain.Contact{}, fmt.Errorf("%w: unknown country %q", ErrContactInvalidInput, contact.Delivery.Country)
		}
	}

	saved, err := s.contacts.Upsert(ctx, contact)
	if err != nil {
		return domain.Contact{}, fmt.Errorf("contact: save: %w", err)
	}

	if err := s.users.UpdateName(ctx, saved.CustomerID, saved.FirstName, saved.LastName); err != nil {
		s.logger(ctx, "contact.profile_name.update_failed", map[string]any{
			"customerId": saved.CustomerID,
			"error":      err.Error(),
		})
	}

	s.logger(ctx, "contact.saved", map[string]any{"customerId": saved.CustomerID})
	return saved, nil
}
