package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/threadline-ai/threadline/internal/logging"
	"github.com/threadline-ai/threadline/pkg/types"
)

const (
	// reconcileInitialInterval is the first retry delay for user store
	// reconciliation.
	reconcileInitialInterval = 100 * time.Millisecond
	// reconcileMaxInterval caps the retry delay.
	reconcileMaxInterval = 2 * time.Second
	// reconcileMaxElapsedTime bounds the total reconciliation time
	// before degrading to an ephemeral identity.
	reconcileMaxElapsedTime = 10 * time.Second
	// reconcileMaxRetries bounds the retry count.
	reconcileMaxRetries = 5
)

// PasswordAuthFunc verifies a username/password pair and returns the
// authenticated user, or nil when the credentials are rejected.
type PasswordAuthFunc func(ctx context.Context, username, password string) (*types.User, error)

// HeaderAuthFunc derives a user from trusted request headers (set by a
// fronting proxy), or nil when the headers carry no identity.
type HeaderAuthFunc func(ctx context.Context, headers http.Header) (*types.User, error)

// ResolverOptions configures a Resolver.
type ResolverOptions struct {
	// Store persists users across sessions. Optional; without it every
	// identity stays ephemeral.
	Store UserStore

	// PasswordAuth enables the password login endpoint.
	PasswordAuth PasswordAuthFunc

	// HeaderAuth enables trusted-header authentication.
	HeaderAuth HeaderAuthFunc
}

// Resolver turns request credentials into identities and reconciles
// them with the user store. It is safe for concurrent use; the config
// snapshot can be swapped on reload.
type Resolver struct {
	mu           sync.RWMutex
	config       *types.Config
	codec        *TokenCodec
	store        UserStore
	passwordAuth PasswordAuthFunc
	headerAuth   HeaderAuthFunc
}

// NewResolver builds a Resolver from the configuration. Returns
// ErrMissingSecret when login is required but no signing secret is set.
func NewResolver(config *types.Config, opts ResolverOptions) (*Resolver, error) {
	r := &Resolver{
		config:       config,
		store:        opts.Store,
		passwordAuth: opts.PasswordAuth,
		headerAuth:   opts.HeaderAuth,
	}
	if err := r.rebuildCodec(config); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Resolver) rebuildCodec(config *types.Config) error {
	// The codec also signs the client-side session state cookie, so
	// it is built whenever a secret exists even if login is optional.
	if config.Auth.Secret == "" {
		if r.requireLogin(config) {
			return ErrMissingSecret
		}
		r.codec = nil
		return nil
	}
	ttl := time.Duration(config.Auth.TokenTTLSeconds) * time.Second
	codec, err := NewTokenCodec(config.Auth.Secret, ttl)
	if err != nil {
		return err
	}
	r.codec = codec
	return nil
}

// SetConfig swaps the configuration snapshot on hot reload. A reload
// that would leave login enabled without a secret is rejected and the
// previous snapshot stays in effect.
func (r *Resolver) SetConfig(config *types.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.codec
	if err := r.rebuildCodec(config); err != nil {
		r.codec = prev
		return err
	}
	r.config = config
	return nil
}

func (r *Resolver) requireLogin(config *types.Config) bool {
	if config.Auth.ForceLogin {
		return true
	}
	if r.passwordAuth != nil || r.headerAuth != nil {
		return true
	}
	for _, provider := range config.Auth.OAuth {
		if provider.IsEnabled() {
			return true
		}
	}
	return false
}

// RequireLogin reports whether clients must authenticate before
// opening a session.
func (r *Resolver) RequireLogin() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.requireLogin(r.config)
}

// PasswordAuthEnabled reports whether password login is available.
func (r *Resolver) PasswordAuthEnabled() bool {
	return r.passwordAuth != nil
}

// HeaderAuthEnabled reports whether trusted-header login is available.
func (r *Resolver) HeaderAuthEnabled() bool {
	return r.headerAuth != nil
}

// OAuthProviders returns the ids of providers that should be offered
// to clients.
func (r *Resolver) OAuthProviders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var providers []string
	for id, provider := range r.config.Auth.OAuth {
		if provider.IsEnabled() {
			providers = append(providers, id)
		}
	}
	return providers
}

// Codec returns the token codec, or nil when login is disabled.
func (r *Resolver) Codec() *TokenCodec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.codec
}

// ConfigSnapshot holds the auth surface exposed to clients before
// they log in.
type ConfigSnapshot struct {
	RequireLogin             bool     `json:"requireLogin"`
	PasswordAuth             bool     `json:"passwordAuth"`
	HeaderAuth               bool     `json:"headerAuth"`
	OAuthProviders           []string `json:"oauthProviders"`
	CookieAuth               bool     `json:"cookieAuth"`
	DefaultTheme             string   `json:"defaultTheme,omitempty"`
	LoginPageImage           string   `json:"loginPageImage,omitempty"`
	LoginPageImageFilter     string   `json:"loginPageImageFilter,omitempty"`
	LoginPageImageDarkFilter string   `json:"loginPageImageDarkFilter,omitempty"`
}

// Snapshot returns the client-visible auth configuration.
func (r *Resolver) Snapshot() ConfigSnapshot {
	r.mu.RLock()
	ui := r.config.UI
	r.mu.RUnlock()
	providers := r.OAuthProviders()
	if providers == nil {
		providers = []string{}
	}
	return ConfigSnapshot{
		RequireLogin:             r.RequireLogin(),
		PasswordAuth:             r.PasswordAuthEnabled(),
		HeaderAuth:               r.HeaderAuthEnabled(),
		OAuthProviders:           providers,
		CookieAuth:               true,
		DefaultTheme:             ui.DefaultTheme,
		LoginPageImage:           ui.LoginPageImage,
		LoginPageImageFilter:     ui.LoginPageImageFilter,
		LoginPageImageDarkFilter: ui.LoginPageImageDarkFilter,
	}
}

// Login verifies a username/password pair through the configured
// callback and issues a bearer token.
func (r *Resolver) Login(ctx context.Context, username, password string) (types.Identity, string, error) {
	if r.passwordAuth == nil {
		return nil, "", fmt.Errorf("%w: password auth not configured", ErrUnauthorized)
	}
	user, err := r.passwordAuth(ctx, username, password)
	if err != nil {
		return nil, "", err
	}
	if user == nil {
		return nil, "", ErrUnauthorized
	}
	return r.issue(ctx, user)
}

// LoginFromHeaders derives a user from trusted request headers and
// issues a bearer token.
func (r *Resolver) LoginFromHeaders(ctx context.Context, headers http.Header) (types.Identity, string, error) {
	if r.headerAuth == nil {
		return nil, "", fmt.Errorf("%w: header auth not configured", ErrUnauthorized)
	}
	user, err := r.headerAuth(ctx, headers)
	if err != nil {
		return nil, "", err
	}
	if user == nil {
		return nil, "", ErrUnauthorized
	}
	return r.issue(ctx, user)
}

func (r *Resolver) issue(ctx context.Context, user *types.User) (types.Identity, string, error) {
	codec := r.Codec()
	if codec == nil {
		return nil, "", ErrMissingSecret
	}
	token, err := codec.Create(user)
	if err != nil {
		return nil, "", err
	}
	return r.reconcile(ctx, user), token, nil
}

// Authenticate decodes a bearer token and reconciles the identity
// with the user store. Returns (nil, nil) when login is not required.
func (r *Resolver) Authenticate(ctx context.Context, token string) (types.Identity, error) {
	if !r.RequireLogin() {
		return nil, nil
	}
	codec := r.Codec()
	if codec == nil {
		return nil, ErrMissingSecret
	}
	if token == "" {
		return nil, ErrUnauthorized
	}
	user, err := codec.Decode(token)
	if err != nil {
		return nil, err
	}
	return r.reconcile(ctx, user), nil
}

// reconcile looks the identity up in the user store, creating a record
// on first sight. Transient store failures are retried with backoff;
// when the store stays unreachable the ephemeral identity is returned
// so a storage outage cannot lock out authenticated clients.
func (r *Resolver) reconcile(ctx context.Context, user *types.User) types.Identity {
	if r.store == nil {
		return user
	}

	var persisted *types.PersistedUser
	operation := func() error {
		found, err := r.store.GetUser(ctx, user.ID)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				created, createErr := r.store.CreateUser(ctx, user)
				if createErr != nil {
					return createErr
				}
				persisted = created
				return nil
			}
			return err
		}
		persisted = found
		return nil
	}

	if err := backoff.Retry(operation, newReconcileBackoff(ctx)); err != nil {
		logging.Warn().Err(err).Str("identifier", user.ID).Msg("user store unavailable, continuing with ephemeral identity")
		return user
	}

	// The credential is fresher than the stored record for display
	// purposes, but an empty name never clobbers a stored one.
	if user.DisplayName != "" {
		persisted.DisplayName = user.DisplayName
	}
	return persisted
}

// newReconcileBackoff creates an exponential backoff with jitter for
// user store reconciliation, bounded and context-aware.
func newReconcileBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = reconcileInitialInterval
	b.MaxInterval = reconcileMaxInterval
	b.MaxElapsedTime = reconcileMaxElapsedTime
	b.RandomizationFactor = 0.5
	b.Multiplier = 2.0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, reconcileMaxRetries), ctx)
}
