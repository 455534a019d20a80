// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jason-s-yu/fusion/internal/apperr"
	"github.com/jonboulle/clockwork"
)

// CookieName is the cookie carrying a player's session token.
const CookieName = "auth_token"

// Session identifies the player behind a request.
type Session struct {
	PlayerToken uuid.UUID
	LobbyCode   int64
	// UserID is uuid.Nil for anonymous players.
	UserID uuid.UUID
}

type sessionClaims struct {
	LobbyCode int64  `json:"lobby"`
	UserID    string `json:"uid,omitempty"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies player session tokens with an ed25519 key pair.
type Issuer struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	clock      clockwork.Clock

	// Expiry is the token lifetime; 0 means tokens never expire.
	Expiry time.Duration
}

// NewIssuer generates a fresh key pair. Tokens do not survive a restart.
func NewIssuer(expiry time.Duration, clock clockwork.Clock) (*Issuer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return &Issuer{privateKey: priv, publicKey: pub, clock: clock, Expiry: expiry}, nil
}

// NewIssuerFromPath reads a raw ed25519 private and public key from disk.
func NewIssuerFromPath(privatePath, publicPath string, expiry time.Duration, clock clockwork.Clock) (*Issuer, error) {
	privateKeyData, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key file: %w", err)
	}
	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key file: %w", err)
	}
	if len(privateKeyData) != ed25519.PrivateKeySize || len(publicKeyData) != ed25519.PublicKeySize {
		return nil, errors.New("key files do not hold raw ed25519 keys")
	}
	return &Issuer{
		privateKey: ed25519.PrivateKey(privateKeyData),
		publicKey:  ed25519.PublicKey(publicKeyData),
		clock:      clock,
		Expiry:     expiry,
	}, nil
}

// Issue signs a token for the session: "sub" is the player token.
func (i *Issuer) Issue(s Session) (string, error) {
	now := i.clock.Now()
	claims := sessionClaims{
		LobbyCode: s.LobbyCode,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  s.PlayerToken.String(),
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if s.UserID != uuid.Nil {
		claims.UserID = s.UserID.String()
	}
	if i.Expiry > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(i.Expiry))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(i.privateKey)
}

// Authenticate verifies a token and returns its session. Every failure wraps apperr.ErrUnauthorized.
func (i *Issuer) Authenticate(tokenString string) (Session, error) {
	if tokenString == "" {
		return Session{}, fmt.Errorf("missing token: %w", apperr.ErrUnauthorized)
	}

	claims := &sessionClaims{}
	t, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.publicKey, nil
	}, jwt.WithTimeFunc(i.clock.Now))
	if err != nil {
		return Session{}, fmt.Errorf("jwt parse error: %v: %w", err, apperr.ErrUnauthorized)
	}
	if !t.Valid {
		return Session{}, fmt.Errorf("invalid token: %w", apperr.ErrUnauthorized)
	}

	playerToken, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Session{}, fmt.Errorf("invalid sub in jwt: %w", apperr.ErrUnauthorized)
	}
	s := Session{PlayerToken: playerToken, LobbyCode: claims.LobbyCode}
	if claims.UserID != "" {
		if s.UserID, err = uuid.Parse(claims.UserID); err != nil {
			return Session{}, fmt.Errorf("invalid uid in jwt: %w", apperr.ErrUnauthorized)
		}
	}
	return s, nil
}

// String renders the session for log fields.
func (s Session) String() string {
	return s.PlayerToken.String() + "@" + strconv.FormatInt(s.LobbyCode, 10)
}
