package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/oakline/api/internal/domain"
	pfirestore "github.com/oakline/api/internal/platform/firestore"
)

const userCollection = "users"

// UserRepository reads the slice of the user profile the shop needs.
type UserRepository struct {
	base *pfirestore.BaseRepository[userDocument]
}

// NewUserRepository constructs a Firestore-backed user repository.
func NewUserRepository(provider *pfirestore.Provider) (*UserRepository, error) {
	if provider == nil {
		return nil, errors.New("user repository requires firestore provider")
	}
	return &UserRepository{
		base: pfirestore.NewBaseRepository[userDocument](provider, userCollection),
	}, nil
}

type userDocument struct {
	Address   string `firestore:"address"`
	FirstName string `firestore:"firstName"`
	LastName  string `firestore:"lastName"`
	Email     string `firestore:"email"`
}

// Get loads the user profile for the given UID.
func (r *UserRepository) Get(ctx context.Context, uid string) (domain.User, error) {
	doc, err := r.base.Get(ctx, strings.TrimSpace(uid))
	if err != nil {
		return domain.User{}, err
	}
	return domain.User{
		UID:       doc.ID,
		Address:   doc.Data.Address,
		FirstName: doc.Data.FirstName,
		LastName:  doc.Data.LastName,
		Email:     doc.Data.Email,
	}, nil
}

// UpdateName writes the display name fields on the profile.
func (r *UserRepository) UpdateName(ctx context.Context, uid, firstName, lastName string) error {
	_, err := r.base.Update(ctx, strings.TrimSpace(uid), []firestore.Update{
		{Path: "firstName", Value: strings.TrimSpace(firstName)},
		{Path: "lastName", Value: strings.TrimSpace(lastName)},
		{Path: "updatedAt", Value: time.Now().UTC()},
	})
	return err
}
