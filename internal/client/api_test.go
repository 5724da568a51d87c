package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPI_WithBearerDoesNotLeakIntoBase(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"a1","fullName":"Ada","email":"ada@example.com","username":"ada","avatarUrl":null}`))
	}))
	defer srv.Close()

	base := NewAPI(srv.URL, srv.Client())
	session := base.WithBearer("tok")

	acc, err := session.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a1", acc.ID)

	_, err = base.Me(context.Background())
	require.NoError(t, err)

	require.Len(t, seen, 2)
	assert.Equal(t, "Bearer tok", seen[0])
	assert.Empty(t, seen[1])
}

func TestAPI_DecodesErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error": "conflict", "message": "email already in use", "field": "email",
		})
	}))
	defer srv.Close()

	_, err := NewAPI(srv.URL, nil).Register(context.Background(), RegisterInput{Email: "a@b.c"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "conflict", apiErr.Code)
	assert.Equal(t, "email", apiErr.Field)
	assert.Equal(t, "email already in use", apiErr.Error())
	assert.False(t, IsSessionRejected(err))
}

func TestAPI_ErrorWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewAPI(srv.URL, nil).InitialData(context.Background())
	require.Error(t, err)
	assert.Equal(t, "request failed with status 502", err.Error())
}

func TestIsSessionRejected(t *testing.T) {
	assert.True(t, IsSessionRejected(&APIError{Status: http.StatusUnauthorized}))
	assert.True(t, IsSessionRejected(&APIError{Status: http.StatusNotFound}))
	assert.False(t, IsSessionRejected(&APIError{Status: http.StatusInternalServerError}))
	assert.False(t, IsSessionRejected(errors.New("dial tcp: connection refused")))
	assert.False(t, IsSessionRejected(nil))
}
