// ABOUTME: Tests for session loading, expiry checks and teardown
// ABOUTME: Tokens are minted locally with golang-jwt; signatures are never checked

package session

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pethome/pethome-inbox/internal/client"
	"github.com/pethome/pethome-inbox/internal/config"
)

func mintToken(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": sub, "iat": time.Now().Unix()}
	if !exp.IsZero() {
		claims["exp"] = exp.Unix()
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("server-secret"))
	require.NoError(t, err)
	return token
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PETHOME_TEST_TOKEN", "  env-token \n")

	s, err := Load(config.AuthConfig{TokenEnv: "PETHOME_TEST_TOKEN", TokenPath: filepath.Join(t.TempDir(), "token")})
	require.NoError(t, err)

	token, err := s.Token()
	require.NoError(t, err)
	assert.Equal(t, "env-token", token)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pethome", "token")
	require.NoError(t, Save(path, "file-token"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	s, err := Load(config.AuthConfig{TokenEnv: "PETHOME_UNSET_TOKEN", TokenPath: path})
	require.NoError(t, err)
	token, err := s.Token()
	require.NoError(t, err)
	assert.Equal(t, "file-token", token)
}

func TestLoadNoToken(t *testing.T) {
	_, err := Load(config.AuthConfig{TokenPath: filepath.Join(t.TempDir(), "missing")})
	assert.ErrorIs(t, err, ErrNoToken)

	empty := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(empty, []byte("\n"), 0o600))
	_, err = Load(config.AuthConfig{TokenPath: empty})
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestExpiredTokenIsUnauthenticated(t *testing.T) {
	s := New(mintToken(t, "ana@example.com", time.Now().Add(-time.Minute)), "")

	_, err := s.Token()
	assert.ErrorIs(t, err, client.ErrUnauthenticated)
}

func TestClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	s := New(mintToken(t, "ana@example.com", exp), "")

	claims, err := s.Claims()
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", claims.Subject)
	assert.True(t, exp.Equal(claims.ExpiresAt))

	token, err := s.Token()
	require.NoError(t, err)
	assert.NotEmpty(t, token)
}

func TestOpaqueTokenIsPassedThrough(t *testing.T) {
	s := New("not-a-jwt", "")
	token, err := s.Token()
	require.NoError(t, err)
	assert.Equal(t, "not-a-jwt", token)

	_, err = s.Claims()
	assert.Error(t, err)
}

func TestUser(t *testing.T) {
	s := New("tok", "")
	assert.Nil(t, s.User())
	assert.Zero(t, s.UserID())

	u := &client.User{ID: 12, Name: "Ana"}
	s.SetUser(u)
	u.Name = "changed"

	assert.Equal(t, int64(12), s.UserID())
	assert.Equal(t, "Ana", s.User().Name)
}

func TestTeardown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	require.NoError(t, Save(path, "tok"))

	s, err := Load(config.AuthConfig{TokenPath: path})
	require.NoError(t, err)
	s.SetUser(&client.User{ID: 12})

	var calls int
	s.OnTeardown(func() { calls++ })

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Teardown()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, calls, "hooks run once")
	assert.False(t, s.Active())
	assert.Zero(t, s.UserID())
	_, err = s.Token()
	assert.ErrorIs(t, err, client.ErrUnauthenticated)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "token file removed")

	late := false
	s.OnTeardown(func() { late = true })
	assert.True(t, late, "late hook runs immediately")
}
