package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"flocksync/internal/app/client/config"
	"flocksync/internal/domain"
	"flocksync/internal/notify"
)

func testConfig(t *testing.T, serverURL string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Env:       "local",
		ServerURL: serverURL,
		LogLevel:  "debug",
		ConfigDir: dir,
		TokenPath: filepath.Join(dir, "session.json"),
		MirrorDSN: ":memory:",
	}
}

func authHandler(t *testing.T) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(domain.Session{
			Token: "tok-1",
			Profile: domain.Profile{
				UserID: "u1", Email: "head@flock.dev", FullName: "Ade Balogun",
				Role: domain.RoleUnitHead, UnitID: "unit1",
			},
		})
	})
	mux.HandleFunc("/api/v1/auth/logout", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/api/v1/data/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	return mux
}

func TestLoginPersistsSession(t *testing.T) {
	srv := httptest.NewServer(authHandler(t))
	defer srv.Close()
	cfg := testConfig(t, srv.URL)

	app, err := New(cfg, zap.NewNop(), notify.NopAlerter{})
	require.NoError(t, err)
	defer app.Close()
	assert.False(t, app.SignedIn())

	profile, err := app.Login(context.Background(), "head@flock.dev", "secret")
	require.NoError(t, err)
	assert.Equal(t, "Ade Balogun", profile.FullName)
	assert.True(t, app.SignedIn())

	data, err := os.ReadFile(cfg.TokenPath)
	require.NoError(t, err)
	var saved domain.Session
	require.NoError(t, json.Unmarshal(data, &saved))
	assert.Equal(t, "tok-1", saved.Token)
}

func TestSavedSessionIsRestored(t *testing.T) {
	srv := httptest.NewServer(authHandler(t))
	defer srv.Close()
	cfg := testConfig(t, srv.URL)

	session := domain.Session{
		Token:   "tok-restored",
		Profile: domain.Profile{UserID: "u1", Role: domain.RoleUnitHead, UnitID: "unit1"},
	}
	data, err := json.Marshal(session)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(cfg.TokenPath, data, 0600))

	app, err := New(cfg, zap.NewNop(), notify.NopAlerter{})
	require.NoError(t, err)
	defer app.Close()

	assert.True(t, app.SignedIn())
	profile, err := app.Profile()
	require.NoError(t, err)
	assert.Equal(t, "u1", profile.UserID)

	// Syncing works straight away off the restored session.
	require.NoError(t, app.Sync(context.Background(), domain.CollectionMembers))
}

func TestCorruptSessionFileIsIgnored(t *testing.T) {
	srv := httptest.NewServer(authHandler(t))
	defer srv.Close()
	cfg := testConfig(t, srv.URL)
	require.NoError(t, os.WriteFile(cfg.TokenPath, []byte("not json"), 0600))

	app, err := New(cfg, zap.NewNop(), notify.NopAlerter{})
	require.NoError(t, err)
	defer app.Close()
	assert.False(t, app.SignedIn())
}

func TestLogoutForgetsSession(t *testing.T) {
	srv := httptest.NewServer(authHandler(t))
	defer srv.Close()
	cfg := testConfig(t, srv.URL)

	app, err := New(cfg, zap.NewNop(), notify.NopAlerter{})
	require.NoError(t, err)
	defer app.Close()

	_, err = app.Login(context.Background(), "head@flock.dev", "secret")
	require.NoError(t, err)
	require.NoError(t, app.Logout(context.Background()))

	assert.False(t, app.SignedIn())
	_, err = os.Stat(cfg.TokenPath)
	assert.True(t, os.IsNotExist(err))

	err = app.Sync(context.Background(), domain.CollectionMembers)
	assert.ErrorIs(t, err, ErrNotSignedIn)
}
