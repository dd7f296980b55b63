package auth

import (
	"context"
	"net/http"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
)

// Authenticate verifies the Firebase ID token carried in the request's
// Authorization header and returns the normalized identity.
func Authenticate(r *http.Request) (*Identity, error) {
	ctx := r.Context()
	app, err := firebase.NewApp(ctx, nil)
	if err != nil {
		return nil, err
	}

	client, err := app.Auth(ctx)
	if err != nil {
		return nil, err
	}

	jwtToken, err := BearerTokenFromRequest(r)
	if err != nil {
		return nil, err
	}

	token, err := client.VerifyIDToken(ctx, jwtToken)
	if err != nil {
		return nil, err
	}
	return identityFromToken(token), nil
}

// VerifyToken verifies a raw ID token outside of an HTTP request context.
func VerifyToken(ctx context.Context, jwtToken string) (*Identity, error) {
	app, err := firebase.NewApp(ctx, nil)
	if err != nil {
		return nil, err
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, err
	}
	token, err := client.VerifyIDToken(ctx, jwtToken)
	if err != nil {
		return nil, err
	}
	return identityFromToken(token), nil
}

func identityFromToken(token *firebaseauth.Token) *Identity {
	id := &Identity{UID: token.UID}
	if v, ok := token.Claims["email"].(string); ok {
		id.Email = v
	}
	if v, ok := token.Claims["name"].(string); ok {
		id.DisplayName = v
	}
	if v, ok := token.Claims["picture"].(string); ok {
		id.PhotoURL = v
	}
	return id
}
