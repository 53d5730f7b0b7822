package handlers_test

import (
	"net/http"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/mmdatafocus/boarding_backend/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useMiniRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	config.UseRedis(client)
	t.Cleanup(func() {
		config.UseRedis(nil)
		_ = client.Close()
	})
	return mr
}

func TestLogoutRevokesSession(t *testing.T) {
	s := newTestServer(t)
	useMiniRedis(t)

	first := s.login("warden")
	second := s.login("warden")
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/auth/me", first, nil).Code)

	w := s.do(http.MethodPost, "/auth/logout", first, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/auth/me", first, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/auth/me", second, nil).Code, "other sessions stay valid")
}

func TestChangePassword(t *testing.T) {
	s := newTestServer(t)
	useMiniRedis(t)

	token := s.login("books")
	other := s.login("books")

	w := s.do(http.MethodPost, "/auth/change-password", token, map[string]string{
		"old_password": "not-the-password1",
		"new_password": "boarding2026",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/auth/change-password", token, map[string]string{
		"old_password": testPassword,
		"new_password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/auth/change-password", token, map[string]string{
		"old_password": testPassword,
		"new_password": "boarding2026",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/auth/me", token, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/auth/me", other, nil).Code)

	w = s.do(http.MethodPost, "/auth/login", "", map[string]string{"username": "books", "password": testPassword})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = s.do(http.MethodPost, "/auth/login", "", map[string]string{"username": "books", "password": "boarding2026"})
	assert.Equal(t, http.StatusOK, w.Code)
}
