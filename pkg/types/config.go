package types

// Config represents the Threadline configuration tree. Files may be
// JSON, JSONC, or YAML; later sources override earlier ones.
type Config struct {
	// Schema reference (for editor support)
	Schema string `json:"$schema,omitempty" yaml:"$schema,omitempty"`

	// Server settings
	Server ServerConfig `json:"server,omitempty" yaml:"server,omitempty"`

	// Authentication settings
	Auth AuthConfig `json:"auth,omitempty" yaml:"auth,omitempty"`

	// UI presentation fields, exposed read-only through the auth
	// configuration snapshot.
	UI UIConfig `json:"ui,omitempty" yaml:"ui,omitempty"`

	// Files holds file-store settings.
	Files FilesConfig `json:"files,omitempty" yaml:"files,omitempty"`

	// Tools maps tool-server names to connection settings for
	// externally-initiated tool subsessions.
	Tools map[string]ToolServerConfig `json:"tools,omitempty" yaml:"tools,omitempty"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `json:"port,omitempty" yaml:"port,omitempty"`

	// CleanupDelaySeconds is how long a websocket session survives
	// after its socket disconnects before it is deleted. A reconnect
	// within the window cancels the deletion.
	CleanupDelaySeconds int `json:"cleanupDelaySeconds,omitempty" yaml:"cleanupDelaySeconds,omitempty"`
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	// Secret signs bearer tokens and the client-side session cookie.
	// Usually supplied via THREADLINE_AUTH_SECRET.
	Secret string `json:"secret,omitempty" yaml:"secret,omitempty"`

	// ForceLogin requires authentication even when no verification
	// callback is configured.
	ForceLogin bool `json:"forceLogin,omitempty" yaml:"forceLogin,omitempty"`

	// TokenTTLSeconds is the bearer token lifetime. Zero means the
	// default of 15 days.
	TokenTTLSeconds int `json:"tokenTTLSeconds,omitempty" yaml:"tokenTTLSeconds,omitempty"`

	// CookieSecure marks auth cookies as Secure.
	CookieSecure bool `json:"cookieSecure,omitempty" yaml:"cookieSecure,omitempty"`

	// OAuth providers keyed by provider id.
	OAuth map[string]OAuthProviderConfig `json:"oauth,omitempty" yaml:"oauth,omitempty"`
}

// OAuthProviderConfig holds one OAuth-style provider. A provider is
// "configured" when both client id and secret are present, and counts
// toward the login requirement only when Enabled is not false.
type OAuthProviderConfig struct {
	ClientID     string `json:"clientId,omitempty" yaml:"clientId,omitempty"`
	ClientSecret string `json:"clientSecret,omitempty" yaml:"clientSecret,omitempty"`
	Enabled      *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty"`
}

// Configured reports whether the provider carries full credentials.
func (p OAuthProviderConfig) Configured() bool {
	return p.ClientID != "" && p.ClientSecret != ""
}

// IsEnabled reports whether the provider should be offered to clients.
func (p OAuthProviderConfig) IsEnabled() bool {
	return p.Configured() && (p.Enabled == nil || *p.Enabled)
}

// UIConfig holds presentation fields surfaced to the login page.
type UIConfig struct {
	DefaultTheme             string `json:"defaultTheme,omitempty" yaml:"defaultTheme,omitempty"`
	LoginPageImage           string `json:"loginPageImage,omitempty" yaml:"loginPageImage,omitempty"`
	LoginPageImageFilter     string `json:"loginPageImageFilter,omitempty" yaml:"loginPageImageFilter,omitempty"`
	LoginPageImageDarkFilter string `json:"loginPageImageDarkFilter,omitempty" yaml:"loginPageImageDarkFilter,omitempty"`
}

// FilesConfig holds file-store settings.
type FilesConfig struct {
	// Directory is the base path under which one subdirectory per
	// session id is created. Defaults to the XDG data path.
	Directory string `json:"directory,omitempty" yaml:"directory,omitempty"`
}

// ToolServerConfig describes how to reach an external tool server.
type ToolServerConfig struct {
	Enabled *bool             `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Type    string            `json:"type,omitempty" yaml:"type,omitempty"` // "local" | "remote"
	Command string            `json:"command,omitempty" yaml:"command,omitempty"`
	Args    []string          `json:"args,omitempty" yaml:"args,omitempty"`
	URL     string            `json:"url,omitempty" yaml:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Timeout int               `json:"timeout,omitempty" yaml:"timeout,omitempty"` // ms
	Env     map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
}
