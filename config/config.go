package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"github.com/slighter12/go-lib/database/postgres"
)

const (
	defaultPath               = "."
	defaultMaxRequestBodySize = "100KB"
	defaultIssuer             = "backend"
	defaultAudience           = "frontend"
	defaultOAuthTimeout       = 10 * time.Second
	defaultOAuthStateTTL      = 10 * time.Minute
	defaultCookieName         = "refresh_token"
	defaultCookiePath         = "/"
)

type Config struct {
	Env struct {
		Env         string `json:"env" yaml:"env"`
		ServiceName string `json:"serviceName" yaml:"serviceName"`
		Debug       bool   `json:"debug" yaml:"debug"`
		// AutoMigrate applies the persistence schema on start-up.
		AutoMigrate bool `json:"autoMigrate" yaml:"autoMigrate"`
		Log         Log  `json:"log" yaml:"log"`
	} `json:"env" yaml:"env"`

	HTTP struct {
		Port               int    `json:"port" yaml:"port"`
		MaxRequestBodySize string `json:"maxRequestBodySize" yaml:"maxRequestBodySize"`
		Timeouts           struct {
			ReadTimeout       time.Duration `json:"readTimeout" yaml:"readTimeout"`
			ReadHeaderTimeout time.Duration `json:"readHeaderTimeout" yaml:"readHeaderTimeout"`
			WriteTimeout      time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
			IdleTimeout       time.Duration `json:"idleTimeout" yaml:"idleTimeout"`
		} `json:"timeouts" yaml:"timeouts"`
	} `json:"http" yaml:"http"`

	Postgres *postgres.DBConn `json:"postgres" yaml:"postgres" mapstructure:"postgres"`

	Redis *RedisConfig `json:"redis" yaml:"redis"`

	Token TokenConfig `json:"token" yaml:"token"`

	Auth *AuthConfig `json:"auth" yaml:"auth"`

	OAuth OAuthConfig `json:"oauth" yaml:"oauth"`

	// Cookie configures how the refresh token is handed to browsers.
	Cookie CookieConfig `json:"cookie" yaml:"cookie"`
}

// TokenConfig holds the access-token signing parameters and token lifetimes.
// Lifetimes are expressed in seconds.
type TokenConfig struct {
	Secret          string `json:"secret" yaml:"secret"`
	Issuer          string `json:"issuer" yaml:"issuer"`
	Audience        string `json:"audience" yaml:"audience"`
	AccessTokenTTL  int64  `json:"accessTokenTTL" yaml:"accessTokenTTL"`
	RefreshTokenTTL int64  `json:"refreshTokenTTL" yaml:"refreshTokenTTL"`
}

// AccessTTL returns the access-token lifetime as a duration.
func (c TokenConfig) AccessTTL() time.Duration {
	return time.Duration(c.AccessTokenTTL) * time.Second
}

// RefreshTTL returns the refresh-token lifetime as a duration.
func (c TokenConfig) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTokenTTL) * time.Second
}

// AuthConfig defines authentication-related configuration
type AuthConfig struct {
	BcryptCost int `json:"bcryptCost" yaml:"bcryptCost"`
}

// OAuthConfig holds per-provider client registrations and gateway limits.
type OAuthConfig struct {
	// Timeout bounds every call to a provider (code exchange and user info).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
	// StateTTL is how long an issued authorization state stays redeemable.
	StateTTL time.Duration `json:"stateTTL" yaml:"stateTTL"`

	Google OAuthProviderConfig `json:"google" yaml:"google"`
	Kakao  OAuthProviderConfig `json:"kakao" yaml:"kakao"`
	Naver  OAuthProviderConfig `json:"naver" yaml:"naver"`
}

// OAuthProviderConfig is a single client registration at an OAuth provider.
// Endpoint overrides are optional; the provider defaults apply when empty.
type OAuthProviderConfig struct {
	ClientID     string   `json:"clientId" yaml:"clientId"`
	ClientSecret string   `json:"clientSecret" yaml:"clientSecret"`
	RedirectURI  string   `json:"redirectUri" yaml:"redirectUri"`
	Scopes       []string `json:"scopes" yaml:"scopes"`
	AuthURL      string   `json:"authUrl" yaml:"authUrl"`
	TokenURL     string   `json:"tokenUrl" yaml:"tokenUrl"`
	UserInfoURL  string   `json:"userInfoUrl" yaml:"userInfoUrl"`
}

// RedisConfig configures the OAuth state store.
type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

// CookieConfig describes the refresh-token cookie.
type CookieConfig struct {
	Name   string `json:"name" yaml:"name"`
	Path   string `json:"path" yaml:"path"`
	Domain string `json:"domain" yaml:"domain"`
	Secure bool   `json:"secure" yaml:"secure"`
	// MaxAge is in seconds; zero falls back to the refresh-token lifetime.
	MaxAge int `json:"maxAge" yaml:"maxAge"`
}

type Log struct {
	Pretty bool   `json:"pretty" yaml:"pretty"`
	Level  string `json:"level" yaml:"level"`
}

// LoadWithEnv loads .yaml files through koanf.
func LoadWithEnv[T any](currEnv string, configPath ...string) (*T, error) {
	cfg := new(T)
	koanfInstance := koanf.New(".")

	// Build list of paths to search for config file
	searchPaths := []string{defaultPath}
	if len(configPath) != 0 {
		pwd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "os.Getwd")
		}
		for _, path := range configPath {
			abs := filepath.Join(pwd, path)
			searchPaths = append(searchPaths, abs)
		}
	}

	// Try to find and load the config file
	var configFile string
	var found bool
	for _, path := range searchPaths {
		candidate := filepath.Join(path, currEnv+".yaml")
		if _, err := os.Stat(candidate); err == nil {
			configFile = candidate
			found = true

			break
		}
	}

	if !found {
		return nil, errors.Errorf("config file %s.yaml not found in any search path", currEnv)
	}

	// Load YAML config file
	if err := koanfInstance.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		return nil, errors.Wrapf(err, "read %s config failed", currEnv)
	}

	existingConfigMap := koanfInstance.Raw()

	// Load environment variables
	if err := koanfInstance.Load(env.Provider(".", env.Opt{
		TransformFunc: func(k, v string) (string, any) {
			// Convert ENV_VAR_NAME to path and align each segment with existing YAML keys.
			// Example: POSTGRES_SSLMODE -> postgres.sslMode (not postgres.sslmode)
			key := canonicalizeEnvKey(k, existingConfigMap)

			return key, v
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables failed")
	}

	// Unmarshal into the config struct (case-insensitive to match env vars)
	if err := koanfInstance.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			MatchName: func(mapKey, fieldName string) bool {
				// Case-insensitive matching for env var overrides
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrapf(err, "unmarshal %s config failed", currEnv)
	}

	return cfg, nil
}

func New() (*Config, error) {
	cfg, err := LoadWithEnv[Config]("config", "config", "../config", "../../config")
	if err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	// Build replicas from environment variables (POSTGRES_REPLICAS_0_HOST, POSTGRES_REPLICAS_0_PORT, etc.)
	if cfg.Postgres != nil {
		cfg.Postgres.Replicas = buildReplicasFromEnv()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (cfg *Config) applyDefaults() {
	if strings.TrimSpace(cfg.HTTP.MaxRequestBodySize) == "" {
		cfg.HTTP.MaxRequestBodySize = defaultMaxRequestBodySize
	}
	if cfg.Token.Issuer == "" {
		cfg.Token.Issuer = defaultIssuer
	}
	if cfg.Token.Audience == "" {
		cfg.Token.Audience = defaultAudience
	}
	if cfg.OAuth.Timeout <= 0 {
		cfg.OAuth.Timeout = defaultOAuthTimeout
	}
	if cfg.OAuth.StateTTL <= 0 {
		cfg.OAuth.StateTTL = defaultOAuthStateTTL
	}
	if cfg.Cookie.Name == "" {
		cfg.Cookie.Name = defaultCookieName
	}
	if cfg.Cookie.Path == "" {
		cfg.Cookie.Path = defaultCookiePath
	}
	if cfg.Cookie.MaxAge <= 0 {
		cfg.Cookie.MaxAge = int(cfg.Token.RefreshTokenTTL)
	}
}

// Validate rejects configurations the token engine cannot run with.
func (cfg *Config) Validate() error {
	if strings.TrimSpace(cfg.Token.Secret) == "" {
		return errors.New("token.secret must be provided")
	}
	if cfg.Token.AccessTokenTTL <= 0 {
		return errors.Errorf("token.accessTokenTTL must be positive, got %d", cfg.Token.AccessTokenTTL)
	}
	if cfg.Token.RefreshTokenTTL <= 0 {
		return errors.Errorf("token.refreshTokenTTL must be positive, got %d", cfg.Token.RefreshTokenTTL)
	}

	return nil
}

func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	segments := strings.Split(strings.ToLower(rawKey), "_")
	canonical := make([]string, 0, len(segments))
	current := existing

	for _, segment := range segments {
		if segment == "" {
			continue
		}

		if matched, next, ok := findExistingSegment(current, segment); ok {
			canonical = append(canonical, matched)
			current = next
		} else {
			canonical = append(canonical, segment)
			current = nil
		}
	}

	return strings.Join(canonical, ".")
}

func findExistingSegment(current map[string]any, segment string) (matched string, next map[string]any, ok bool) {
	if len(current) == 0 {
		return "", nil, false
	}

	needle := normalizeToken(segment)
	for key, value := range current {
		if normalizeToken(key) != needle {
			continue
		}

		child, _ := value.(map[string]any)

		return key, child, true
	}

	return "", nil, false
}

func normalizeToken(s string) string {
	var normalized strings.Builder
	normalized.Grow(len(s))

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		normalized.WriteRune(unicode.ToLower(r))
	}

	return normalized.String()
}

// buildReplicasFromEnv builds the replicas slice from environment variables.
// Environment variable format: POSTGRES_REPLICAS_{index}_{field}
// Example: POSTGRES_REPLICAS_0_HOST, POSTGRES_REPLICAS_0_PORT, POSTGRES_REPLICAS_0_USERNAME, POSTGRES_REPLICAS_0_PASSWORD
func buildReplicasFromEnv() []postgres.ConnectionConfig {
	var replicas []postgres.ConnectionConfig

	for i := 0; ; i++ {
		prefix := "POSTGRES_REPLICAS_" + strconv.Itoa(i) + "_"

		host := os.Getenv(prefix + "HOST")
		port := os.Getenv(prefix + "PORT")
		if host == "" || port == "" {
			// No more replicas or incomplete configuration.
			break
		}

		replica := postgres.ConnectionConfig{
			Host:     host,
			Port:     port,
			UserName: os.Getenv(prefix + "USERNAME"),
			Password: os.Getenv(prefix + "PASSWORD"),
		}

		replicas = append(replicas, replica)
	}

	return replicas
}
