package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// CookieName is the admin session cookie.
const CookieName = "tillerpro_session"

// HashPassword returns the hex sha256 of password.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// Service checks admin credentials against the users table and signs
// session cookies.
type Service struct {
	db     *sql.DB
	secret []byte
}

func NewService(db *sql.DB, sessionSecret string) *Service {
	return &Service{db: db, secret: []byte(sessionSecret)}
}

// ValidateCredentials reports whether email and password match a stored user.
func (s *Service) ValidateCredentials(ctx context.Context, email, password string) (bool, error) {
	var stored string
	err := s.db.QueryRowContext(ctx, `SELECT password_hash FROM users WHERE email = ?`, email).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query user credentials: %w", err)
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(HashPassword(password))) == 1, nil
}

// Sign returns "<base64 email>.<hex hmac>".
func (s *Service) Sign(email string) string {
	payload := base64.RawURLEncoding.EncodeToString([]byte(email))
	return payload + "." + hex.EncodeToString(s.mac(payload))
}

// Verify returns the email carried by a signed value.
func (s *Service) Verify(value string) (string, bool) {
	payload, signature, ok := strings.Cut(value, ".")
	if !ok || strings.Contains(signature, ".") {
		return "", false
	}
	provided, err := hex.DecodeString(signature)
	if err != nil || !hmac.Equal(provided, s.mac(payload)) {
		return "", false
	}
	decoded, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil || len(decoded) == 0 {
		return "", false
	}
	return string(decoded), true
}

func (s *Service) mac(payload string) []byte {
	m := hmac.New(sha256.New, s.secret)
	_, _ = m.Write([]byte(payload))
	return m.Sum(nil)
}

// SetCookie issues a signed session cookie for email.
func (s *Service) SetCookie(w http.ResponseWriter, email string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    s.Sign(email),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Service) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// FromRequest returns the signed-in email, if any.
func (s *Service) FromRequest(r *http.Request) (string, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return "", false
	}
	return s.Verify(c.Value)
}
