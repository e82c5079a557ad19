package session

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	sessionCookie = "raspisms_session"
	flashCookie   = "raspisms_flash"
	issuer        = "raspisms-admin"
	flashTTL      = 5 * time.Minute
)

var ErrNoSession = errors.New("no valid session")

// Session is the authenticated state carried by a request.
type Session struct {
	UserID  string
	IsAdmin bool
	CSRF    string
	// ViaAPIKey is set for requests authenticated with an API key; they carry no CSRF token.
	ViaAPIKey bool
}

type sessionClaims struct {
	jwt.RegisteredClaims
	Admin bool   `json:"adm"`
	CSRF  string `json:"csrf"`
}

// Flash is a one-time message shown after a redirect.
type Flash struct {
	Type    string `json:"type"` // success, danger, info
	Message string `json:"message"`
}

type flashClaims struct {
	jwt.RegisteredClaims
	Flashes []Flash `json:"f"`
}

// Manager issues and reads HS256-signed session and flash cookies.
type Manager struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

func NewManager(secret string, ttl time.Duration, secureCookies bool) *Manager {
	return &Manager{secret: []byte(secret), ttl: ttl, secure: secureCookies, now: time.Now}
}

// Issue creates a new session for the user and writes its cookie.
func (m *Manager) Issue(w http.ResponseWriter, userID string, isAdmin bool) (*Session, error) {
	csrf, err := newCSRFToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate csrf token: %w", err)
	}
	now := m.now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		Admin: isAdmin,
		CSRF:  csrf,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session: %w", err)
	}
	m.setCookie(w, sessionCookie, signed, m.ttl)
	return &Session{UserID: userID, IsAdmin: isAdmin, CSRF: csrf}, nil
}

// Load returns the session carried by the request cookie.
func (m *Manager) Load(r *http.Request) (*Session, error) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return nil, ErrNoSession
	}
	var claims sessionClaims
	if _, err := m.parse(c.Value, &claims); err != nil {
		return nil, ErrNoSession
	}
	if claims.Subject == "" {
		return nil, ErrNoSession
	}
	return &Session{UserID: claims.Subject, IsAdmin: claims.Admin, CSRF: claims.CSRF}, nil
}

// Clear removes the session cookie.
func (m *Manager) Clear(w http.ResponseWriter) {
	m.setCookie(w, sessionCookie, "", -1)
}

// VerifyCSRF compares token with the session's CSRF token in constant time.
func (m *Manager) VerifyCSRF(s *Session, token string) bool {
	if s == nil {
		return false
	}
	if s.ViaAPIKey {
		return true
	}
	if s.CSRF == "" || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(s.CSRF), []byte(token)) == 1
}

// AddFlash appends a flash message to the ones already pending on the request.
func (m *Manager) AddFlash(w http.ResponseWriter, r *http.Request, typ, message string) {
	flashes := m.pending(r)
	flashes = append(flashes, Flash{Type: typ, Message: message})
	now := m.now()
	claims := flashClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(flashTTL)),
		},
		Flashes: flashes,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return
	}
	m.setCookie(w, flashCookie, signed, flashTTL)
}

// Flashes returns and clears the pending flash messages.
func (m *Manager) Flashes(w http.ResponseWriter, r *http.Request) []Flash {
	flashes := m.pending(r)
	if len(flashes) > 0 {
		m.setCookie(w, flashCookie, "", -1)
	}
	return flashes
}

func (m *Manager) pending(r *http.Request) []Flash {
	c, err := r.Cookie(flashCookie)
	if err != nil || c.Value == "" {
		return nil
	}
	var claims flashClaims
	if _, err := m.parse(c.Value, &claims); err != nil {
		return nil
	}
	return claims.Flashes
}

func (m *Manager) parse(raw string, claims jwt.Claims) (*jwt.Token, error) {
	return jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.now),
	)
}

func (m *Manager) setCookie(w http.ResponseWriter, name, value string, ttl time.Duration) {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if ttl < 0 {
		c.MaxAge = -1
	} else {
		c.MaxAge = int(ttl.Seconds())
	}
	http.SetCookie(w, c)
}

func newCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

type contextKey struct{}

// WithContext stores s in ctx.
func WithContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session stored by the auth middleware, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(contextKey{}).(*Session)
	return s
}
