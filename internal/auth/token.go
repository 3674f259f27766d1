// Package auth issues and verifies the signed links that let a contact cancel
// or reschedule a booking without an account.
package auth

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Domenick1991/appointments/internal/apperr"
)

const issuer = "appointments"

var signingMethod = jwt.SigningMethodHS256

type BookingClaims struct {
	BookingID   int64 `json:"booking_id"`
	WorkspaceID int64 `json:"workspace_id"`
	jwt.RegisteredClaims
}

type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("token secret is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive")
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Mint signs a token bound to one booking.
func (i *TokenIssuer) Mint(bookingID, workspaceID int64) (string, error) {
	now := i.now()
	claims := BookingClaims{
		BookingID:   bookingID,
		WorkspaceID: workspaceID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatInt(bookingID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("signing booking token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, issuer and expiry and that the token belongs to bookingID.
func (i *TokenIssuer) Verify(token string, bookingID int64) (*BookingClaims, error) {
	claims := &BookingClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) {
			if t.Method != signingMethod {
				return nil, fmt.Errorf("unexpected signing method %s", t.Header["alg"])
			}
			return i.secret, nil
		},
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeUnauthorized, err, "invalid booking token")
	}
	if claims.BookingID != bookingID {
		return nil, apperr.New(apperr.CodeUnauthorized, "token does not match booking")
	}
	return claims, nil
}
