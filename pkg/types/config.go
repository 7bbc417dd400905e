package types

import "time"

// Mode constants for gateway operation
const (
	ModeLocal  = "local"  // in-memory stores, no Redis/Postgres
	ModeRemote = "remote" // full infrastructure
)

// AppConfig is the root configuration for the recall gateway
type AppConfig struct {
	Mode       string `key:"mode" json:"mode"` // "local" or "remote"
	DebugMode  bool   `key:"debugMode" json:"debug_mode"`
	PrettyLogs bool   `key:"prettyLogs" json:"pretty_logs"`

	Database DatabaseConfig `key:"database" json:"database"`
	Gateway  GatewayConfig  `key:"gateway" json:"gateway"`
	OAuth    OAuthConfig    `key:"oauth" json:"oauth"`
	Sources  SourcesConfig  `key:"sources" json:"sources"`
	LLM      LLMConfig      `key:"llm" json:"llm"`
}

// IsLocalMode returns true if running without Redis/Postgres
func (c *AppConfig) IsLocalMode() bool {
	return c.Mode == ModeLocal || c.Mode == ""
}

// ----------------------------------------------------------------------------
// Database Configuration
// ----------------------------------------------------------------------------

type DatabaseConfig struct {
	Redis    RedisConfig    `key:"redis" json:"redis"`
	Postgres PostgresConfig `key:"postgres" json:"postgres"`
}

type RedisConfig struct {
	Addrs        []string      `key:"addrs" json:"addrs"`
	Username     string        `key:"username" json:"username"`
	Password     string        `key:"password" json:"password"`
	ClientName   string        `key:"clientName" json:"client_name"`
	PoolSize     int           `key:"poolSize" json:"pool_size"`
	DialTimeout  time.Duration `key:"dialTimeout" json:"dial_timeout"`
	ReadTimeout  time.Duration `key:"readTimeout" json:"read_timeout"`
	WriteTimeout time.Duration `key:"writeTimeout" json:"write_timeout"`
}

type PostgresConfig struct {
	Host            string        `key:"host" json:"host"`
	Port            int           `key:"port" json:"port"`
	User            string        `key:"user" json:"user"`
	Password        string        `key:"password" json:"password"`
	Database        string        `key:"database" json:"database"`
	SSLMode         string        `key:"sslMode" json:"ssl_mode"`
	MaxOpenConns    int           `key:"maxOpenConns" json:"max_open_conns"`
	MaxIdleConns    int           `key:"maxIdleConns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `key:"connMaxLifetime" json:"conn_max_lifetime"`
}

// ----------------------------------------------------------------------------
// Gateway Configuration
// ----------------------------------------------------------------------------

type GatewayConfig struct {
	HTTP HTTPConfig `key:"http" json:"http"`
	Auth AuthConfig `key:"auth" json:"auth"`
}

type HTTPConfig struct {
	Host             string     `key:"host" json:"host"`
	Port             int        `key:"port" json:"port"`
	EnablePrettyLogs bool       `key:"enablePrettyLogs" json:"enable_pretty_logs"`
	CORS             CORSConfig `key:"cors" json:"cors"`
}

type CORSConfig struct {
	AllowedOrigins []string `key:"allowedOrigins" json:"allowed_origins"`
	AllowedHeaders []string `key:"allowedHeaders" json:"allowed_headers"`
	AllowedMethods []string `key:"allowedMethods" json:"allowed_methods"`
}

type AuthConfig struct {
	JWTSecret string `key:"jwtSecret" json:"jwt_secret"`
}

// ----------------------------------------------------------------------------
// OAuth / Credentials Configuration
// ----------------------------------------------------------------------------

type OAuthConfig struct {
	Google GoogleOAuthConfig `key:"google" json:"google"`

	// EncryptionKey protects credentials at rest (hex, 32 bytes)
	EncryptionKey string `key:"encryptionKey" json:"encryption_key"`
}

type GoogleOAuthConfig struct {
	ClientID     string `key:"clientId" json:"client_id"`
	ClientSecret string `key:"clientSecret" json:"client_secret"`
	RedirectURL  string `key:"redirectUrl" json:"redirect_url"`
}

// ----------------------------------------------------------------------------
// Sources Configuration
// ----------------------------------------------------------------------------

type SourcesConfig struct {
	// EnableAgentSources toggles whether out-of-band sources are attempted
	// at all. Per-user overrides win over this default.
	EnableAgentSources bool `key:"enableAgentSources" json:"enable_agent_sources"`

	// AgentSourceUsers holds per-user overrides ("user-id": true/false)
	AgentSourceUsers map[string]bool `key:"agentSourceUsers" json:"agent_source_users"`

	// LookupLimit caps results for targeted lookups
	LookupLimit int `key:"lookupLimit" json:"lookup_limit"`

	// AggregateLimit caps results for summarize/count intents
	AggregateLimit int `key:"aggregateLimit" json:"aggregate_limit"`
}

// LimitForIntent returns the result cap for a query intent
func (c *SourcesConfig) LimitForIntent(intent QueryIntent) int {
	lookup, aggregate := c.LookupLimit, c.AggregateLimit
	if lookup <= 0 {
		lookup = 10
	}
	if aggregate <= 0 {
		aggregate = 50
	}
	if intent == IntentSummarize || intent == IntentCount {
		return aggregate
	}
	return lookup
}

// ----------------------------------------------------------------------------
// LLM Configuration
// ----------------------------------------------------------------------------

type LLMConfig struct {
	APIKey  string `key:"apiKey" json:"api_key"`
	BaseURL string `key:"baseUrl" json:"base_url"`
	Model   string `key:"model" json:"model"`
}
