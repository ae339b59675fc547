// Package keycloak verifies bearer tokens issued by the portal's Keycloak
// realm. The service runs bearer-only: tokens are validated offline against
// the realm's RSA public key, never by calling the identity provider.
package keycloak

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	dErrors "usersapi/pkg/domain-errors"
)

// Verifier validates Keycloak access tokens and extracts the subject claim.
// It implements middleware.JWTValidator.
type Verifier struct {
	publicKey *rsa.PublicKey
}

// New parses the realm public key. The key may be raw base64 (as shown in the
// Keycloak admin console) or a full PEM block.
func New(realmPublicKey string) (*Verifier, error) {
	pem := realmPublicKey
	if !strings.Contains(pem, "BEGIN") {
		pem = "-----BEGIN PUBLIC KEY-----\n" + realmPublicKey + "\n-----END PUBLIC KEY-----"
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pem))
	if err != nil {
		return nil, fmt.Errorf("parse realm public key: %w", err)
	}
	return &Verifier{publicKey: key}, nil
}

// ValidateToken verifies signature and expiry, then returns the subject.
func (v *Verifier) ValidateToken(tokenString string) (string, error) {
	parsed, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return v.publicKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid {
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	subject, err := parsed.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", dErrors.New(dErrors.CodeUnauthorized, "token has no subject")
	}
	return subject, nil
}
