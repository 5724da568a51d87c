package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/levitt-app/levitt/internal/logging"
	"github.com/levitt-app/levitt/internal/model"
	"github.com/levitt-app/levitt/internal/verse"
)

// ErrSuperseded is returned when a sign-in or refresh finished after a later
// transition (usually a logout) and its result was discarded.
var ErrSuperseded = errors.New("session changed while request was in flight")

// Controller owns the session lifecycle: bootstrap from the stored token,
// sign-in, refresh and logout. Every committed transition bumps a generation
// counter; async results captured under an older generation are dropped.
type Controller struct {
	api    *API
	tokens TokenStore
	state  *StateStore
	log    logging.Logger

	mu      sync.Mutex
	gen     uint64
	session *API
	booted  bool
}

// NewController wires a Controller. Call Bootstrap before reading State.
func NewController(api *API, tokens TokenStore, state *StateStore, log logging.Logger) *Controller {
	return &Controller{api: api, tokens: tokens, state: state, log: log}
}

// State returns the current snapshot.
func (c *Controller) State() State { return c.state.Get() }

// Session returns the session-bound API client, or nil when signed out.
func (c *Controller) Session() *API {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Controller) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// Bootstrap restores the stored session. Only the first call does anything.
func (c *Controller) Bootstrap(ctx context.Context) {
	c.mu.Lock()
	if c.booted {
		c.mu.Unlock()
		return
	}
	c.booted = true
	gen := c.gen
	c.mu.Unlock()

	token, err := c.tokens.Get(ctx)
	if err != nil {
		c.log.Warn(ctx, "read stored token failed", "error", err)
		c.expire(ctx, gen)
		return
	}
	if token == "" {
		c.expire(ctx, gen)
		return
	}

	session := c.api.WithBearer(token)
	data, err := session.InitialData(ctx)
	if err != nil {
		c.log.Info(ctx, "stored session rejected", "error", err)
		c.expire(ctx, gen)
		return
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		c.log.Info(ctx, "stale bootstrap result discarded")
		return
	}
	c.gen++
	c.session = session
	c.state.commit(authenticated(token, data.User, &data.DailyVerse))
	c.mu.Unlock()
	c.state.flush()
}

// Login signs in with an email or username and persists the session token.
// On failure the state is left unchanged and the API error is returned.
func (c *Controller) Login(ctx context.Context, emailOrUsername, password string) error {
	gen := c.generation()
	s, err := c.api.Login(ctx, emailOrUsername, password)
	if err != nil {
		return err
	}
	return c.establish(ctx, gen, s)
}

// Register creates an account and signs straight into it.
func (c *Controller) Register(ctx context.Context, in RegisterInput) error {
	gen := c.generation()
	s, err := c.api.Register(ctx, in)
	if err != nil {
		return err
	}
	return c.establish(ctx, gen, s)
}

// SignInWithGoogle exchanges a Google ID token for a session.
func (c *Controller) SignInWithGoogle(ctx context.Context, idToken string) error {
	gen := c.generation()
	s, err := c.api.GoogleLogin(ctx, idToken)
	if err != nil {
		return err
	}
	return c.establish(ctx, gen, s)
}

func (c *Controller) establish(ctx context.Context, gen uint64, s Session) error {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return ErrSuperseded
	}
	if err := c.tokens.Set(ctx, s.Token); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("persist token: %w", err)
	}
	c.gen++
	c.booted = true
	c.session = c.api.WithBearer(s.Token)
	c.state.commit(authenticated(s.Token, s.User, nil))
	c.mu.Unlock()
	c.state.flush()
	return nil
}

// Logout clears the session. Calling it while signed out is harmless.
func (c *Controller) Logout(ctx context.Context) error {
	c.mu.Lock()
	c.gen++
	c.booted = true
	c.session = nil
	err := c.tokens.Delete(ctx)
	if c.state.Get().Status != Unauthenticated {
		c.state.commit(State{Status: Unauthenticated})
	}
	c.mu.Unlock()
	c.state.flush()
	if err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

// Refresh refetches the account and verse when the app returns to the
// foreground. A rejected token signs the user out; transport errors leave
// the session in place.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	session, gen := c.session, c.gen
	c.mu.Unlock()
	if session == nil || c.state.Get().Status != Authenticated {
		return nil
	}

	data, err := session.InitialData(ctx)
	if err != nil {
		if IsSessionRejected(err) {
			c.expire(ctx, gen)
		}
		return err
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return ErrSuperseded
	}
	c.gen++
	token := c.state.Get().Token
	c.state.commit(authenticated(token, data.User, &data.DailyVerse))
	c.mu.Unlock()
	c.state.flush()
	return nil
}

// ForgotPassword asks the server to mail a reset code. The reply is the same
// whether or not the email belongs to an account.
func (c *Controller) ForgotPassword(ctx context.Context, email string) (string, error) {
	return c.api.ForgotPassword(ctx, email)
}

// ResetPassword redeems a reset code. The user still has to sign in afterwards.
func (c *Controller) ResetPassword(ctx context.Context, token, password string) (string, error) {
	return c.api.ResetPassword(ctx, token, password)
}

// expire drops the session and stored token unless a newer transition
// already happened.
func (c *Controller) expire(ctx context.Context, gen uint64) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.gen++
	c.session = nil
	if err := c.tokens.Delete(ctx); err != nil {
		c.log.Warn(ctx, "delete stored token failed", "error", err)
	}
	c.state.commit(State{Status: Unauthenticated})
	c.mu.Unlock()
	c.state.flush()
}

func authenticated(token string, acc model.PublicAccount, v *verse.Verse) State {
	return State{Status: Authenticated, Token: token, Account: &acc, DailyVerse: v}
}
