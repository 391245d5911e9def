package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims identify a guest browsing session.
type Claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (t *TokenIssuer) Issue(sessionID string) (string, time.Time, error) {
	now := t.now()
	expires := now.Add(t.ttl)
	claims := &Claims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID,
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, expires, nil
}

// Parse returns the session id of a valid token.
func (t *TokenIssuer) Parse(tokenStr string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.SessionID == "" {
		return "", errors.New("session token has no session")
	}
	return claims.SessionID, nil
}

type SessionHandler struct {
	tokens *TokenIssuer
}

func NewSessionHandler(tokens *TokenIssuer) *SessionHandler {
	return &SessionHandler{tokens: tokens}
}

type SessionResponseDTO struct {
	SessionID string    `json:"session_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// POST /api/v1/session
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	sessionID := uuid.NewString()
	token, expires, err := h.tokens.Issue(sessionID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "could not issue session token")
		return
	}

	respondJSON(w, http.StatusCreated, SessionResponseDTO{
		SessionID: sessionID,
		Token:     token,
		ExpiresAt: expires,
	})
}
