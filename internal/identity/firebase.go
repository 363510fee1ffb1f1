package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// FirebaseVerifier validates Firebase ID tokens minted by a web or mobile
// frontend and maps them to provider identities. It lets clients that already
// sign in through Firebase Auth exchange their token for a hub session.
type FirebaseVerifier struct {
	client *auth.Client
}

// NewFirebaseVerifier initialises the Firebase Admin SDK from a service
// account key supplied as a JSON blob. Escaped newlines in the private key
// (common when the key travels through an environment variable) are
// un-escaped first.
func NewFirebaseVerifier(ctx context.Context, credentialsJSON []byte) (*FirebaseVerifier, error) {
	var key map[string]any
	if err := json.Unmarshal(credentialsJSON, &key); err != nil {
		return nil, fmt.Errorf("parse firebase credentials: %w", err)
	}
	if pk, ok := key["private_key"].(string); ok {
		key["private_key"] = strings.ReplaceAll(pk, `\n`, "\n")
	}
	normalized, err := json.Marshal(key)
	if err != nil {
		return nil, fmt.Errorf("re-encode firebase credentials: %w", err)
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsJSON(normalized))
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("get firebase auth client: %w", err)
	}
	return &FirebaseVerifier{client: client}, nil
}

// Verify checks an ID token and returns the identity it carries. Failures
// are wrapped in ErrProvider.
func (f *FirebaseVerifier) Verify(ctx context.Context, idToken string) (*ProviderUser, error) {
	tok, err := f.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("%w: verify id token: %w", ErrProvider, err)
	}

	pu := &ProviderUser{UID: tok.UID}
	if v, ok := tok.Claims["name"].(string); ok {
		pu.DisplayName = v
	}
	if v, ok := tok.Claims["email"].(string); ok {
		pu.Email = v
	}
	if v, ok := tok.Claims["picture"].(string); ok {
		pu.PhotoURL = v
	}
	if v, ok := tok.Claims["email_verified"].(bool); ok {
		pu.EmailVerified = v
	}
	return pu, nil
}
