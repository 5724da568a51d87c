// Package client is the app side of the session lifecycle: a typed API
// client, the local token store, the observable session state and the
// controller that drives it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/levitt-app/levitt/internal/model"
	"github.com/levitt-app/levitt/internal/verse"
)

// APIError is a non-2xx response decoded from the server's error body.
// Message is safe to show to the user.
type APIError struct {
	Status  int
	Code    string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field"`
}

// Error prefers the server's message and falls back to the status.
func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

// IsSessionRejected reports whether err means the stored session is no
// longer usable: the token was refused or its account is gone.
func IsSessionRejected(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusNotFound
}

// Session is returned by every sign-in endpoint.
type Session struct {
	User      model.PublicAccount `json:"user"`
	Token     string              `json:"token"`
	ExpiresAt time.Time           `json:"expiresAt"`
}

// InitialData is the home-screen bootstrap payload.
type InitialData struct {
	User       model.PublicAccount `json:"user"`
	DailyVerse verse.Verse         `json:"dailyVerse"`
}

// RegisterInput is the sign-up form.
type RegisterInput struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// API talks to the Levitt server. The zero-token API can only reach public
// endpoints; WithBearer derives a session-bound copy.
type API struct {
	baseURL string
	http    *http.Client
}

// NewAPI returns a client for baseURL. A nil hc gets a 15s-timeout client.
func NewAPI(baseURL string, hc *http.Client) *API {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &API{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

// WithBearer returns a copy whose requests carry token. The receiver is not
// modified, so dropping the copy drops the credential.
func (a *API) WithBearer(token string) *API {
	base := a.http.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	hc := *a.http
	hc.Transport = &bearerTransport{base: base, token: token}
	return &API{baseURL: a.baseURL, http: &hc}
}

type bearerTransport struct {
	base  http.RoundTripper
	token string
}

func (t *bearerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r2 := r.Clone(r.Context())
	r2.Header.Set("Authorization", "Bearer "+t.token)
	return t.base.RoundTrip(r2)
}

// Register calls POST /users.
func (a *API) Register(ctx context.Context, in RegisterInput) (Session, error) {
	var s Session
	err := a.do(ctx, http.MethodPost, "/users", in, &s)
	return s, err
}

// Login calls POST /sessions.
func (a *API) Login(ctx context.Context, emailOrUsername, password string) (Session, error) {
	var s Session
	err := a.do(ctx, http.MethodPost, "/sessions", map[string]string{
		"emailOrUsername": emailOrUsername,
		"password":        password,
	}, &s)
	return s, err
}

// GoogleLogin exchanges a Google ID token for a session.
func (a *API) GoogleLogin(ctx context.Context, idToken string) (Session, error) {
	var s Session
	err := a.do(ctx, http.MethodPost, "/auth/google", map[string]string{"providerIdToken": idToken}, &s)
	return s, err
}

// ForgotPassword returns the server's acknowledgement message.
func (a *API) ForgotPassword(ctx context.Context, email string) (string, error) {
	var m struct {
		Message string `json:"message"`
	}
	err := a.do(ctx, http.MethodPost, "/forgot-password", map[string]string{"email": email}, &m)
	return m.Message, err
}

// ResetPassword returns the server's confirmation message.
func (a *API) ResetPassword(ctx context.Context, token, password string) (string, error) {
	var m struct {
		Message string `json:"message"`
	}
	err := a.do(ctx, http.MethodPost, "/reset-password", map[string]string{"token": token, "password": password}, &m)
	return m.Message, err
}

// Me fetches the signed-in account. Requires a client from WithBearer.
func (a *API) Me(ctx context.Context) (model.PublicAccount, error) {
	var acc model.PublicAccount
	err := a.do(ctx, http.MethodGet, "/me", nil, &acc)
	return acc, err
}

// InitialData fetches the account and today's verse in one round trip.
func (a *API) InitialData(ctx context.Context) (InitialData, error) {
	var d InitialData
	err := a.do(ctx, http.MethodGet, "/initial-data", nil, &d)
	return d, err
}

// DailyVerse needs no session.
func (a *API) DailyVerse(ctx context.Context) (verse.Verse, error) {
	var v verse.Verse
	err := a.do(ctx, http.MethodGet, "/daily-verse", nil, &v)
	return v, err
}

func (a *API) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.Unmarshal(raw, apiErr)
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
