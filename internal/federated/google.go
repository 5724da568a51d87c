// Package federated verifies third-party identity assertions. Only Google
// ID tokens are supported.
package federated

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/levitt-app/levitt/internal/logging"
)

// ErrTokenInvalid covers every verification failure: bad signature, unknown
// key, wrong issuer or audience, expiry and missing email.
var ErrTokenInvalid = errors.New("federated token invalid")

// GoogleCertsURL serves Google's signing keys as x509 PEM certificates keyed by kid.
const GoogleCertsURL = "https://www.googleapis.com/oauth2/v1/certs"

var googleIssuers = []string{"accounts.google.com", "https://accounts.google.com"}

const certsCacheKey = "federated:google:certs"

// Claims is the verified identity taken from an ID token.
type Claims struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// Verifier checks a provider ID token.
type Verifier interface {
	Verify(ctx context.Context, idToken string) (Claims, error)
}

// googleClaims mirrors the ID token payload. email_verified is sometimes a
// string in older tokens.
type googleClaims struct {
	Email         string `json:"email"`
	EmailVerified any    `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	jwt.RegisteredClaims
}

// GoogleVerifier validates Google-issued ID tokens against the published
// signing certificates. Safe for concurrent use.
type GoogleVerifier struct {
	certsURL   string
	clientIDs  []string
	defaultTTL time.Duration
	http       *http.Client
	cache      CertCache
	log        logging.Logger
	now        func() time.Time

	mu      sync.RWMutex
	keys    map[string]*rsa.PublicKey
	expires time.Time

	// refreshMu serializes reloads; lastForced is guarded by it.
	refreshMu     sync.Mutex
	lastForced    time.Time
	forceInterval time.Duration
}

// DefaultForceInterval is the minimum gap between reloads triggered by an
// unknown kid while the cached key set is still fresh.
const DefaultForceInterval = time.Minute

// Option customizes a GoogleVerifier.
type Option func(*GoogleVerifier)

// WithHTTPClient, WithCertCache and WithClock replace the defaults used for
// fetching keys, sharing them between replicas and reading the time.
func WithHTTPClient(c *http.Client) Option { return func(v *GoogleVerifier) { v.http = c } }
func WithCertCache(c CertCache) Option     { return func(v *GoogleVerifier) { v.cache = c } }
func WithClock(now func() time.Time) Option {
	return func(v *GoogleVerifier) { v.now = now }
}

// WithForceInterval overrides DefaultForceInterval.
func WithForceInterval(d time.Duration) Option {
	return func(v *GoogleVerifier) { v.forceInterval = d }
}

// NewGoogleVerifier accepts tokens whose aud is one of clientIDs. An empty
// certsURL means GoogleCertsURL.
func NewGoogleVerifier(certsURL string, clientIDs []string, defaultTTL time.Duration, log logging.Logger, opts ...Option) *GoogleVerifier {
	if certsURL == "" {
		certsURL = GoogleCertsURL
	}
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	v := &GoogleVerifier{
		certsURL:   certsURL,
		clientIDs:  clientIDs,
		defaultTTL: defaultTTL,
		http:       &http.Client{Timeout: 5 * time.Second},
		log:        log,
		now:        time.Now,

		forceInterval: DefaultForceInterval,
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Verify checks signature, issuer, audience, expiry and the email claims.
func (v *GoogleVerifier) Verify(ctx context.Context, idToken string) (Claims, error) {
	if strings.TrimSpace(idToken) == "" || len(v.clientIDs) == 0 {
		return Claims{}, ErrTokenInvalid
	}

	var gc googleClaims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30*time.Second),
	)
	_, err := parser.ParseWithClaims(idToken, &gc, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		return v.key(ctx, kid)
	})
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if !slices.Contains(googleIssuers, gc.Issuer) {
		return Claims{}, fmt.Errorf("%w: issuer %q", ErrTokenInvalid, gc.Issuer)
	}
	if !slices.ContainsFunc(gc.Audience, func(a string) bool { return slices.Contains(v.clientIDs, a) }) {
		return Claims{}, fmt.Errorf("%w: audience", ErrTokenInvalid)
	}
	if gc.Subject == "" || strings.TrimSpace(gc.Email) == "" {
		return Claims{}, fmt.Errorf("%w: missing subject or email", ErrTokenInvalid)
	}
	if !parseVerified(gc.EmailVerified) {
		return Claims{}, fmt.Errorf("%w: email not verified", ErrTokenInvalid)
	}

	return Claims{
		Subject:       gc.Subject,
		Email:         gc.Email,
		EmailVerified: true,
		Name:          gc.Name,
		Picture:       gc.Picture,
	}, nil
}

// parseVerified reports whether email_verified is true. A missing or
// malformed claim counts as unverified.
func parseVerified(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		b, err := strconv.ParseBool(x)
		return err == nil && b
	default:
		return false
	}
}

// key returns the public key for kid. An unknown kid reloads the key set
// (Google rotates keys), at most once per forceInterval while the cached set
// is fresh. Concurrent callers share one reload.
func (v *GoogleVerifier) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if k, ok, _ := v.lookup(kid); ok {
		return k, nil
	}

	v.refreshMu.Lock()
	defer v.refreshMu.Unlock()

	k, ok, fresh := v.lookup(kid)
	if ok {
		return k, nil
	}
	if fresh {
		now := v.now()
		if !v.lastForced.IsZero() && now.Sub(v.lastForced) < v.forceInterval {
			return nil, fmt.Errorf("unknown kid %q", kid)
		}
		v.lastForced = now
	}
	if err := v.refresh(ctx, fresh); err != nil {
		return nil, err
	}

	if k, ok, _ := v.lookup(kid); ok {
		return k, nil
	}
	return nil, fmt.Errorf("unknown kid %q", kid)
}

// lookup reports the cached key for kid when the set is fresh, and whether
// the set is fresh at all.
func (v *GoogleVerifier) lookup(kid string) (*rsa.PublicKey, bool, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	fresh := v.now().Before(v.expires)
	k, ok := v.keys[kid]
	return k, ok && fresh, fresh
}

// refresh reloads keys. When force is false the shared cache is consulted
// before hitting the network.
func (v *GoogleVerifier) refresh(ctx context.Context, force bool) error {
	if !force && v.cache != nil {
		if raw, ttl, err := v.cache.Get(ctx, certsCacheKey); err == nil && len(raw) > 0 {
			if keys, err := parseCerts(raw); err == nil {
				v.store(keys, ttl)
				return nil
			}
		}
	}

	raw, ttl, err := v.fetch(ctx)
	if err != nil {
		return err
	}
	keys, err := parseCerts(raw)
	if err != nil {
		return err
	}
	v.store(keys, ttl)
	if v.cache != nil {
		if err := v.cache.Set(ctx, certsCacheKey, raw, ttl); err != nil {
			v.log.Warn(ctx, "google certs cache write failed", "err", err)
		}
	}
	return nil
}

func (v *GoogleVerifier) store(keys map[string]*rsa.PublicKey, ttl time.Duration) {
	v.mu.Lock()
	v.keys = keys
	v.expires = v.now().Add(ttl)
	v.mu.Unlock()
}

func (v *GoogleVerifier) fetch(ctx context.Context) ([]byte, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.certsURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("certs request: %w", err)
	}
	resp, err := v.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch certs: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("fetch certs: status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, 0, fmt.Errorf("read certs: %w", err)
	}
	ttl := maxAge(resp.Header.Get("Cache-Control"))
	if ttl <= 0 {
		ttl = v.defaultTTL
	}
	return raw, ttl, nil
}

func parseCerts(raw []byte) (map[string]*rsa.PublicKey, error) {
	var pems map[string]string
	if err := json.Unmarshal(raw, &pems); err != nil {
		return nil, fmt.Errorf("decode certs: %w", err)
	}
	keys := make(map[string]*rsa.PublicKey, len(pems))
	for kid, p := range pems {
		k, err := jwt.ParseRSAPublicKeyFromPEM([]byte(p))
		if err != nil {
			return nil, fmt.Errorf("parse cert %s: %w", kid, err)
		}
		keys[kid] = k
	}
	if len(keys) == 0 {
		return nil, errors.New("no certs published")
	}
	return keys, nil
}

// maxAge extracts max-age from a Cache-Control header; 0 when absent.
func maxAge(h string) time.Duration {
	for _, part := range strings.Split(h, ",") {
		part = strings.TrimSpace(part)
		if s, ok := strings.CutPrefix(part, "max-age="); ok {
			if n, err := strconv.Atoi(s); err == nil && n > 0 {
				return time.Duration(n) * time.Second
			}
		}
	}
	return 0
}
