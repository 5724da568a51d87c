package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/levitt-app/levitt/internal/client"
)

func TestRun_StatusWithoutSessionRoutesToLogin(t *testing.T) {
	t.Setenv("LEVITT_SESSION_DB", filepath.Join(t.TempDir(), "session.db"))
	t.Setenv("LEVITT_API_URL", "http://127.0.0.1:1")

	var out bytes.Buffer
	require.NoError(t, run("status", nil, &out))
	assert.Contains(t, out.String(), "status: unauthenticated")
	assert.Contains(t, out.String(), "screen: /auth/login")
}

func TestRun_ResetRequiresMatchingPasswords(t *testing.T) {
	t.Setenv("LEVITT_SESSION_DB", filepath.Join(t.TempDir(), "session.db"))

	err := run("reset", []string{"-token", "abc", "-password", "one password", "-confirm", "another one"}, &bytes.Buffer{})
	require.EqualError(t, err, "passwords do not match")
}

func TestRun_UnknownCommand(t *testing.T) {
	t.Setenv("LEVITT_SESSION_DB", filepath.Join(t.TempDir(), "session.db"))
	assert.Error(t, run("dance", nil, &bytes.Buffer{}))
}

func TestRun_MeAndVerse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/daily-verse":
			_, _ = w.Write([]byte(`{"text":"Jesus wept.","reference":"John 11:35"}`))
		case "/initial-data":
			_, _ = w.Write([]byte(`{"user":{"id":"a1","username":"ada"},"dailyVerse":{"text":"Jesus wept.","reference":"John 11:35"}}`))
		case "/me":
			if r.Header.Get("Authorization") != "Bearer tok" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`{"id":"a1","fullName":"Ada Levitt","email":"ada@example.com","username":"ada"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	dbPath := filepath.Join(t.TempDir(), "session.db")
	t.Setenv("LEVITT_SESSION_DB", dbPath)
	t.Setenv("LEVITT_API_URL", srv.URL)

	var out bytes.Buffer
	require.NoError(t, run("verse", nil, &out))
	assert.Equal(t, "\"Jesus wept.\" John 11:35\n", out.String())

	assert.EqualError(t, run("me", nil, &bytes.Buffer{}), "not signed in")

	store, err := client.OpenSQLiteStore(context.Background(), dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Set(context.Background(), "tok"))
	require.NoError(t, store.Close())

	out.Reset()
	require.NoError(t, run("me", nil, &out))
	assert.Contains(t, out.String(), "email: ada@example.com")
}
