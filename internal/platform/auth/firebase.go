package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// FirebaseSettings selects the identity project tokens are verified against.
type FirebaseSettings struct {
	ProjectID       string
	CredentialsFile string
}

// FirebaseVerifier validates Firebase ID tokens through the Admin SDK. It is
// the production TokenVerifier; tests substitute their own.
type FirebaseVerifier struct {
	client *firebaseauth.Client
}

// NewFirebaseVerifier constructs a FirebaseVerifier backed by the Admin SDK.
func NewFirebaseVerifier(ctx context.Context, settings FirebaseSettings) (*FirebaseVerifier, error) {
	projectID := strings.TrimSpace(settings.ProjectID)
	if projectID == "" {
		return nil, errors.New("auth: firebase project id is required")
	}

	var clientOpts []option.ClientOption
	if settings.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(settings.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("auth: initialise firebase app: %w", err)
	}

	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("auth: initialise firebase auth client: %w", err)
	}

	return &FirebaseVerifier{client: client}, nil
}

// VerifyToken validates the ID token and maps it onto the request identity.
func (v *FirebaseVerifier) VerifyToken(ctx context.Context, token string) (Identity, error) {
	if v == nil || v.client == nil {
		return Identity{}, errors.New("auth: firebase verifier not initialised")
	}

	decoded, err := v.client.VerifyIDToken(ctx, token)
	if err != nil {
		if strings.Contains(err.Error(), "expired") {
			return Identity{}, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return Identity{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	email, _ := decoded.Claims["email"].(string)
	return Identity{UID: decoded.UID, Email: email}, nil
}
