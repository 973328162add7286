package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oakline/api/internal/domain"
	pfirestore "github.com/oakline/api/internal/platform/firestore"
)

const contactCollection = "customer_contacts"

// ContactRepository stores customer contact details keyed by customer ID.
type ContactRepository struct {
	base *pfirestore.BaseRepository[contactDocument]
}

// NewContactRepository constructs a Firestore-backed contact repository.
func NewContactRepository(provider *pfirestore.Provider) (*ContactRepository, error) {
	if provider == nil {
		return nil, errors.New("contact repository requires firestore provider")
	}
	return &ContactRepository{
		base: pfirestore.NewBaseRepository[contactDocument](provider, contactCollection),
	}, nil
}

type addressDocument struct {
	Line1      string `firestore:"line1"`
	Line2      string `firestore:"line2"`
	City       string `firestore:"city"`
	Region     string `firestore:"region"`
	PostalCode string `firestore:"postalCode"`
	Country    string `firestore:"country"`
}

type contactDocument struct {
	FirstName string           `firestore:"firstName"`
	LastName  string           `firestore:"lastName"`
	Email     string           `firestore:"email"`
	Phone     string           `firestore:"phone"`
	Billing   addressDocument  `firestore:"billing"`
	Delivery  *addressDocument `firestore:"delivery"`
	UpdatedAt time.Time        `firestore:"updatedAt"`
}

func addressToDocument(address domain.Address) addressDocument {
	return addressDocument{
		Line1:      strings.TrimSpace(address.Line1),
		Line2:      strings.TrimSpace(address.Line2),
		City:       strings.TrimSpace(address.City),
		Region:     strings.TrimSpace(address.Region),
		PostalCode: strings.TrimSpace(address.PostalCode),
		Country:    strings.ToUpper(strings.TrimSpace(address.Country)),
	}
}

func addressFromDocument(doc addressDocument) domain.Address {
	return domain.Address{
		Line1:      doc.Line1,
		Line2:      doc.Line2,
		City:       doc.City,
		Region:     doc.Region,
		PostalCode: doc.PostalCode,
		Country:    doc.Country,
	}
}

// Get loads the stored contact details for a customer.
func (r *ContactRepository) Get(ctx context.Context, customerID string) (domain.Contact, error) {
	doc, err := r.base.Get(ctx, strings.TrimSpace(customerID))
	if err != nil {
		return domain.Contact{}, err
	}
	return contactFromDocument(doc.ID, doc.Data), nil
}

// Upsert stores the contact details, replacing any previous snapshot.
func (r *ContactRepository) Upsert(ctx context.Context, contact domain.Contact) (domain.Contact, error) {
	customerID := strings.TrimSpace(contact.CustomerID)
	if customerID == "" {
		return domain.Contact{}, errors.New("contact repository: customer id is required")
	}

	doc := contactDocument{
		FirstName: strings.TrimSpace(contact.FirstName),
		LastName:  strings.TrimSpace(contact.LastName),
		Email:     strings.TrimSpace(contact.Email),
		Phone:     strings.TrimSpace(contact.Phone),
		Billing:   addressToDocument(contact.Billing),
		UpdatedAt: time.Now().UTC(),
	}
	if contact.Delivery != nil {
		delivery := addressToDocument(*contact.Delivery)
		doc.Delivery = &delivery
	}
	if !contact.UpdatedAt.IsZero() {
		doc.UpdatedAt = contact.UpdatedAt.UTC()
	}

	result, err := r.base.Set(ctx, customerID, doc)
	if err != nil {
		return domain.Contact{}, err
	}

	saved := contactFromDocument(customerID, doc)
	saved.UpdatedAt = result.UpdateTime
	return saved, nil
}

func contactFromDocument(id string, doc contactDocument) domain.Contact {
	contact := domain.Contact{
		CustomerID: id,
		FirstName:  doc.FirstName,
		LastName:   doc.LastName,
		Email:      doc.Email,
		Phone:      doc.Phone,
		Billing:    addressFromDocument(doc.Billing),
		UpdatedAt:  doc.UpdatedAt,
	}
	if doc.Delivery != nil {
		delivery := addressFromDocument(*doc.Delivery)
		contact.Delivery = &delivery
	}
	return contact
}
