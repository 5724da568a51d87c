package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/levitt-app/levitt/internal/handler"
	"github.com/levitt-app/levitt/internal/logging"
	"github.com/levitt-app/levitt/internal/model"
	"github.com/levitt-app/levitt/internal/repository"
	"github.com/levitt-app/levitt/internal/router"
	"github.com/levitt-app/levitt/internal/service"
	"github.com/levitt-app/levitt/internal/utils"
	"github.com/levitt-app/levitt/internal/verse"
)

type liveServer struct {
	url    string
	client *http.Client
	tokens *utils.TokenIssuer
}

func newLiveServer(t *testing.T) *liveServer {
	t.Helper()
	log := logging.Discard()
	store := repository.NewMemoryStore()
	tokens := utils.NewTokenIssuer("test-secret", "levitt", 7*24*time.Hour)
	resets := service.NewResetTokenManager(store, time.Hour, bcrypt.MinCost, nil, log)
	linker := service.NewLinker(store, log)
	auth := handler.NewAuthHandler(store, tokens, resets, nil, linker, bcrypt.MinCost, log)

	srv := httptest.NewServer(router.New(router.Deps{Auth: auth, Tokens: tokens, Health: store, Log: log}))
	t.Cleanup(srv.Close)
	return &liveServer{url: srv.URL, client: srv.Client(), tokens: tokens}
}

func (s *liveServer) controller(tokens TokenStore) *Controller {
	return NewController(NewAPI(s.url, s.client), tokens, NewStateStore(), logging.Discard())
}

var ada = RegisterInput{FullName: "Ada Levitt", Email: "ada@example.com", Username: "ada_l", Password: "correct horse"}

func TestController_RegisterThenBootstrapOnNextLaunch(t *testing.T) {
	ctx := context.Background()
	srv := newLiveServer(t)
	tokens := NewMemoryStore("")

	first := srv.controller(tokens)
	require.NoError(t, first.Register(ctx, ada))
	st := first.State()
	require.Equal(t, Authenticated, st.Status)
	assert.Equal(t, "ada_l", st.Account.Username)
	stored, _ := tokens.Get(ctx)
	assert.Equal(t, st.Token, stored)
	require.NotNil(t, first.Session())

	next := srv.controller(tokens)
	next.Bootstrap(ctx)
	st = next.State()
	require.Equal(t, Authenticated, st.Status)
	assert.Equal(t, "ada@example.com", st.Account.Email)
	require.NotNil(t, st.DailyVerse)
	assert.Equal(t, verse.Today(), *st.DailyVerse)
}

func TestController_BootstrapWithExpiredTokenSignsOut(t *testing.T) {
	ctx := context.Background()
	srv := newLiveServer(t)
	expired, err := srv.tokens.IssueWithTTL("a1", -time.Hour)
	require.NoError(t, err)
	tokens := NewMemoryStore(expired.Token)

	c := srv.controller(tokens)
	nav := NewMemoryRouter("/home")
	gate := NewGate(DefaultGateConfig(), c.state, nav)
	gate.Start()
	defer gate.Stop()
	assert.Equal(t, "/home", nav.Location())

	c.Bootstrap(ctx)

	assert.Equal(t, Unauthenticated, c.State().Status)
	assert.Nil(t, c.Session())
	stored, _ := tokens.Get(ctx)
	assert.Empty(t, stored)
	assert.Equal(t, "/auth/login", nav.Location())
}

func TestController_BootstrapWithoutToken(t *testing.T) {
	srv := newLiveServer(t)
	c := srv.controller(NewMemoryStore(""))
	c.Bootstrap(context.Background())
	assert.Equal(t, Unauthenticated, c.State().Status)
	assert.False(t, c.State().Loading())
}

func TestController_LoginFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	srv := newLiveServer(t)
	c := srv.controller(NewMemoryStore(""))
	c.Bootstrap(ctx)

	err := c.Login(ctx, "nobody", "wrong password")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "invalid credentials", apiErr.Message)
	assert.Equal(t, Unauthenticated, c.State().Status)
}

func TestController_LoginAndLogout(t *testing.T) {
	ctx := context.Background()
	srv := newLiveServer(t)
	tokens := NewMemoryStore("")
	c := srv.controller(tokens)
	require.NoError(t, c.Register(ctx, ada))
	require.NoError(t, c.Logout(ctx))

	require.NoError(t, c.Login(ctx, "ADA@example.com", "correct horse"))
	assert.Equal(t, Authenticated, c.State().Status)

	var seen []Status
	c.state.Subscribe(func(st State) { seen = append(seen, st.Status) })
	require.NoError(t, c.Logout(ctx))
	require.NoError(t, c.Logout(ctx))

	assert.Equal(t, []Status{Unauthenticated}, seen)
	assert.Nil(t, c.Session())
	stored, _ := tokens.Get(ctx)
	assert.Empty(t, stored)
}

func TestController_BootstrapRunsOnce(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeInitialData(w)
	}))
	defer srv.Close()

	c := NewController(NewAPI(srv.URL, srv.Client()), NewMemoryStore("tok"), NewStateStore(), logging.Discard())
	c.Bootstrap(context.Background())
	c.Bootstrap(context.Background())
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, Authenticated, c.State().Status)
}

// blockingServer holds every request to path until release is closed.
type blockingServer struct {
	srv     *httptest.Server
	arrived chan struct{}
	release chan struct{}
}

func newBlockingServer(t *testing.T, path string, respond func(http.ResponseWriter)) *blockingServer {
	t.Helper()
	b := &blockingServer{arrived: make(chan struct{}, 1), release: make(chan struct{})}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == path {
			b.arrived <- struct{}{}
			<-b.release
		}
		respond(w)
	}))
	t.Cleanup(b.srv.Close)
	return b
}

func writeInitialData(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(InitialData{
		User:       model.PublicAccount{ID: "a1", Username: "ada"},
		DailyVerse: verse.Today(),
	})
}

func TestController_StaleBootstrapAfterLogoutIsDiscarded(t *testing.T) {
	ctx := context.Background()
	b := newBlockingServer(t, "/initial-data", writeInitialData)
	tokens := NewMemoryStore("tok")
	c := NewController(NewAPI(b.srv.URL, b.srv.Client()), tokens, NewStateStore(), logging.Discard())

	done := make(chan struct{})
	go func() {
		c.Bootstrap(ctx)
		close(done)
	}()
	<-b.arrived
	require.NoError(t, c.Logout(ctx))
	close(b.release)
	<-done

	assert.Equal(t, Unauthenticated, c.State().Status)
	assert.Nil(t, c.Session())
	stored, _ := tokens.Get(ctx)
	assert.Empty(t, stored)
}

func TestController_LoginRacingLogoutLoses(t *testing.T) {
	ctx := context.Background()
	b := newBlockingServer(t, "/sessions", func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Session{User: model.PublicAccount{ID: "a1"}, Token: "fresh"})
	})
	tokens := NewMemoryStore("")
	c := NewController(NewAPI(b.srv.URL, b.srv.Client()), tokens, NewStateStore(), logging.Discard())

	errCh := make(chan error, 1)
	go func() { errCh <- c.Login(ctx, "ada", "correct horse") }()
	<-b.arrived
	require.NoError(t, c.Logout(ctx))
	close(b.release)

	assert.ErrorIs(t, <-errCh, ErrSuperseded)
	assert.Equal(t, Unauthenticated, c.State().Status)
	stored, _ := tokens.Get(ctx)
	assert.Empty(t, stored)
}

func TestController_Refresh(t *testing.T) {
	ctx := context.Background()
	var status atomic.Int32
	status.Store(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if code := int(status.Load()); code != http.StatusOK {
			w.WriteHeader(code)
			return
		}
		writeInitialData(w)
	}))
	defer srv.Close()

	tokens := NewMemoryStore("tok")
	c := NewController(NewAPI(srv.URL, srv.Client()), tokens, NewStateStore(), logging.Discard())
	c.Bootstrap(ctx)
	require.Equal(t, Authenticated, c.State().Status)

	require.NoError(t, c.Refresh(ctx))
	assert.Equal(t, "tok", c.State().Token)

	status.Store(http.StatusBadGateway)
	require.Error(t, c.Refresh(ctx))
	assert.Equal(t, Authenticated, c.State().Status)
	stored, _ := tokens.Get(ctx)
	assert.Equal(t, "tok", stored)

	status.Store(http.StatusUnauthorized)
	err := c.Refresh(ctx)
	assert.True(t, IsSessionRejected(err))
	assert.Equal(t, Unauthenticated, c.State().Status)
	stored, _ = tokens.Get(ctx)
	assert.Empty(t, stored)

	require.NoError(t, c.Refresh(ctx))
}

func TestController_ForgotPasswordIsPassThrough(t *testing.T) {
	ctx := context.Background()
	srv := newLiveServer(t)
	c := srv.controller(NewMemoryStore(""))
	c.Bootstrap(ctx)

	msg, err := c.ForgotPassword(ctx, "unknown@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, msg)
	assert.Equal(t, Unauthenticated, c.State().Status)

	_, err = c.ResetPassword(ctx, "not-a-token", "new password 1")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
}
