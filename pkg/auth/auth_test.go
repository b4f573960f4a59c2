package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore("")

	_, err := s.Token(ctx)
	assert.ErrorIs(t, err, ErrNoToken)

	require.NoError(t, s.Save("abc"))
	tok, err := s.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	require.NoError(t, s.Clear())
	_, err = s.Token(ctx)
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "token")
	s := NewFileStore(path)

	_, err := s.Token(ctx)
	assert.ErrorIs(t, err, ErrNoToken)

	require.NoError(t, s.Save("jwt-value"))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	tok, err := s.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "jwt-value", tok)

	require.NoError(t, s.Clear())
	require.NoError(t, s.Clear(), "clearing twice is fine")
	_, err = s.Token(ctx)
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestFileStore_BlankFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o600))

	_, err := NewFileStore(path).Token(context.Background())
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestLoginClient_Login(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/login", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())

		if r.PostForm.Get("username") != "employee01" || r.PostForm.Get("password") != "secret123" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":"Incorrect username or password"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok-1","token_type":"bearer","role":"user"}`))
	}))
	defer srv.Close()

	store := NewMemoryStore("")
	c := NewLoginClient(srv.URL+"/", store, srv.Client())

	s, err := c.Login(context.Background(), "employee01", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "user", s.Role)

	tok, err := store.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)

	_, err = c.Login(context.Background(), "employee01", "wrong")
	assert.ErrorIs(t, err, ErrBadCredentials)

	require.NoError(t, c.Logout())
	_, err = store.Token(context.Background())
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestLoginClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail":"database down"}`))
	}))
	defer srv.Close()

	_, err := NewLoginClient(srv.URL, nil, srv.Client()).Login(context.Background(), "a", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database down")
}
