// ABOUTME: Explicit authenticated session: bearer token, current user, teardown
// ABOUTME: Replaces ambient browser storage; every consumer receives the Session it uses

package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pethome/pethome-inbox/internal/client"
	"github.com/pethome/pethome-inbox/internal/config"
)

// ErrNoToken means neither the environment nor the token file held a token.
var ErrNoToken = errors.New("no token configured")

// Claims is the unverified content of the bearer token. Signature checks are
// the server's job; the client only reads expiry to fail fast.
type Claims struct {
	Subject   string
	ExpiresAt time.Time
}

// Session holds the credential and identity for one logged-in user.
type Session struct {
	mu        sync.RWMutex
	token     string
	tokenPath string
	user      *client.User
	torn      bool
	hooks     []func()
	now       func() time.Time
}

// New creates a session around token. tokenPath, when set, is the file the
// token was read from and is removed on Teardown.
func New(token, tokenPath string) *Session {
	return &Session{
		token:     strings.TrimSpace(token),
		tokenPath: tokenPath,
		now:       time.Now,
	}
}

// Load builds a session from the configured environment variable, falling
// back to the token file.
func Load(cfg config.AuthConfig) (*Session, error) {
	if cfg.TokenEnv != "" {
		if token := strings.TrimSpace(os.Getenv(cfg.TokenEnv)); token != "" {
			return New(token, ""), nil
		}
	}

	if cfg.TokenPath == "" {
		return nil, ErrNoToken
	}
	data, err := os.ReadFile(cfg.TokenPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoToken
		}
		return nil, fmt.Errorf("reading token file: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return nil, ErrNoToken
	}
	return New(token, cfg.TokenPath), nil
}

// Save writes token to path with owner-only permissions.
func Save(path, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrNoToken
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	return nil
}

// Token returns the bearer token. It fails with client.ErrUnauthenticated
// once the session is torn down or the token's exp claim has passed.
// Implements client.TokenSource.
func (s *Session) Token() (string, error) {
	s.mu.RLock()
	token, torn := s.token, s.torn
	s.mu.RUnlock()

	if torn || token == "" {
		return "", client.ErrUnauthenticated
	}
	claims, err := parseClaims(token)
	if err == nil && !claims.ExpiresAt.IsZero() && !s.now().Before(claims.ExpiresAt) {
		return "", fmt.Errorf("%w: token expired at %s", client.ErrUnauthenticated, claims.ExpiresAt.Format(time.RFC3339))
	}
	return token, nil
}

// Claims decodes the token without verifying its signature.
func (s *Session) Claims() (Claims, error) {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()
	return parseClaims(token)
}

func parseClaims(token string) (Claims, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return Claims{}, fmt.Errorf("parsing token: %w", err)
	}

	var claims Claims
	if sub, err := parsed.Claims.GetSubject(); err == nil {
		claims.Subject = sub
	}
	if exp, err := parsed.Claims.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	return claims, nil
}

// SetUser records the identity resolved via GET /auth/me.
func (s *Session) SetUser(u *client.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u == nil {
		s.user = nil
		return
	}
	copied := *u
	s.user = &copied
}

// User returns the current user, or nil before SetUser.
func (s *Session) User() *client.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	copied := *s.user
	return &copied
}

// UserID returns the current user's id, or 0 before SetUser.
func (s *Session) UserID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return 0
	}
	return s.user.ID
}

// Active reports whether the session has not been torn down.
func (s *Session) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.torn
}

// OnTeardown registers fn to run when the session ends. Hooks registered
// after teardown run immediately.
func (s *Session) OnTeardown(fn func()) {
	s.mu.Lock()
	if s.torn {
		s.mu.Unlock()
		fn()
		return
	}
	s.hooks = append(s.hooks, fn)
	s.mu.Unlock()
}

// Teardown discards the credential, removes the token file and runs the
// registered hooks. Only the first call has any effect.
func (s *Session) Teardown() {
	s.mu.Lock()
	if s.torn {
		s.mu.Unlock()
		return
	}
	s.torn = true
	s.token = ""
	s.user = nil
	path := s.tokenPath
	hooks := s.hooks
	s.hooks = nil
	s.mu.Unlock()

	if path != "" {
		_ = os.Remove(path)
	}
	for _, fn := range hooks {
		fn()
	}
}
