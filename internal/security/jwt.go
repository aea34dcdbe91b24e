package security

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DeviceClaims is the bearer token payload used by the app's sync API. The
// subject carries the admin user id; the device id ties the token to one
// installation.
type DeviceClaims struct {
	TokenType string `json:"token_type"`
	DeviceID  string `json:"device_id,omitempty"`
	jwt.RegisteredClaims
}

func (c *DeviceClaims) AdminUserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse token subject: %w", err)
	}
	return uint(id), nil
}

type DeviceTokenManager struct {
	issuer   string
	audience string
	secret   []byte
}

func NewDeviceTokenManager(issuer, audience, secret string) *DeviceTokenManager {
	return &DeviceTokenManager{
		issuer:   issuer,
		audience: audience,
		secret:   []byte(secret),
	}
}

func (m *DeviceTokenManager) Sign(adminUserID uint, deviceID string, ttl time.Duration) (string, error) {
	claims := DeviceClaims{
		TokenType: "device",
		DeviceID:  deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   fmt.Sprintf("%d", adminUserID),
			Audience:  []string{m.audience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func (m *DeviceTokenManager) Parse(raw string) (*DeviceClaims, error) {
	claims := &DeviceClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing algorithm")
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithAudience(m.audience))
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.TokenType != "device" {
		return nil, fmt.Errorf("unexpected token type: %s", claims.TokenType)
	}
	return claims, nil
}
