package config

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Version information - set by GoReleaser during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// GetVersionInfo returns a formatted version string
func GetVersionInfo() string {
	return fmt.Sprintf("oauth-callback version %s, commit %s, built at %s", version, commit, date)
}

// ErrInvalidConfig is returned when a loaded configuration fails validation
var ErrInvalidConfig = errors.New("invalid config")

const (
	envPrefix = "OAUTH_CALLBACK"

	DefaultHost            = "127.0.0.1"
	DefaultPort            = 8080
	DefaultShutdownTimeout = 5 * time.Second
	DefaultCallbackPath    = "/"
	DefaultCallbackParam   = "code"
	DefaultMissingValue    = "None"
	DefaultProvider        = "custom"
	DefaultAuthURL         = "https://ticktick.com/oauth/authorize"
	DefaultScopes          = "tasks:read tasks:write"
)

// Config is the complete configuration of the callback server and its commands
type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Callback CallbackConfig `mapstructure:"callback" yaml:"callback"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	OAuth    OAuthConfig    `mapstructure:"oauth" yaml:"oauth"`
}

// ServerConfig controls the listener
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Addr returns the host:port the server listens on
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// CallbackConfig describes the redirect route and how the echoed parameter is rendered.
type CallbackConfig struct {
	Path    string `mapstructure:"path" yaml:"path"`
	Param   string `mapstructure:"param" yaml:"param"`
	Missing string `mapstructure:"missing" yaml:"missing"`
}

// LoggingConfig controls the zap logger
type LoggingConfig struct {
	Level             string `mapstructure:"level" yaml:"level"`
	Format            string `mapstructure:"format" yaml:"format"`
	Color             bool   `mapstructure:"color" yaml:"color"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace" yaml:"disable_stacktrace"`
	OutputPath        string `mapstructure:"output_path" yaml:"output_path"`
	AppendToFile      bool   `mapstructure:"append_to_file" yaml:"append_to_file"`
	DisableConsole    bool   `mapstructure:"disable_console" yaml:"disable_console"`
}

// OAuthConfig describes the client used to build the authorization URL
type OAuthConfig struct {
	Provider    string `mapstructure:"provider" yaml:"provider"` // custom, github
	ClientID    string `mapstructure:"client_id" yaml:"client_id"`
	AuthURL     string `mapstructure:"auth_url" yaml:"auth_url"`
	Scopes      string `mapstructure:"scopes" yaml:"scopes"`
	RedirectURL string `mapstructure:"redirect_url" yaml:"redirect_url"` // defaults to the callback server URL
}

// Pattern returns the ServeMux pattern for the callback route. The root path
// is anchored with {$} so that only "/" itself matches.
func (c CallbackConfig) Pattern() string {
	if c.Path == "/" {
		return "GET /{$}"
	}
	return "GET " + c.Path
}

// CallbackURL returns the URL an authorization server should redirect to
func (c *Config) CallbackURL() string {
	if c.OAuth.RedirectURL != "" {
		return c.OAuth.RedirectURL
	}
	return fmt.Sprintf("http://%s%s", c.Server.Addr(), c.Callback.Path)
}

// InitFlags registers the flags shared by every command on the given set (without parsing)
func InitFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "Path to a config file (default ./config.yaml or /etc/oauth-callback/config.yaml)")
	flags.String("host", DefaultHost, "Address to listen on")
	flags.Int("port", DefaultPort, "Port to listen on")
	flags.String("log-level", "info", "Log level (debug|info|warn|error)")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", DefaultHost)
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("server.shutdown_timeout", DefaultShutdownTimeout)

	v.SetDefault("callback.path", DefaultCallbackPath)
	v.SetDefault("callback.param", DefaultCallbackParam)
	v.SetDefault("callback.missing", DefaultMissingValue)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.color", true)
	v.SetDefault("logging.disable_stacktrace", true)
	v.SetDefault("logging.output_path", "")
	v.SetDefault("logging.append_to_file", false)
	v.SetDefault("logging.disable_console", false)

	v.SetDefault("oauth.provider", DefaultProvider)
	v.SetDefault("oauth.auth_url", DefaultAuthURL)
	v.SetDefault("oauth.scopes", DefaultScopes)
	// no default, but registered so OAUTH_CALLBACK_* env vars reach Unmarshal
	v.SetDefault("oauth.client_id", "")
	v.SetDefault("oauth.redirect_url", "")
}

// Load builds the configuration from defaults, an optional config file,
// OAUTH_CALLBACK_* environment variables and the given flags, in increasing
// order of precedence. flags may be nil.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		// flag names differ from their config keys
		for key, name := range map[string]string{
			"server.host":   "host",
			"server.port":   "port",
			"logging.level": "log-level",
		} {
			if f := flags.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
	}

	configFile := v.GetString("config")
	if flags != nil {
		if f := flags.Lookup("config"); f != nil && f.Changed {
			configFile = f.Value.String()
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/oauth-callback")

		// the server runs fine without any config file
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the fields the server cannot start without
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	if c.Callback.Param == "" {
		return fmt.Errorf("%w: callback.param must not be empty", ErrInvalidConfig)
	}
	if !strings.HasPrefix(c.Callback.Path, "/") {
		return fmt.Errorf("%w: callback.path %q must start with /", ErrInvalidConfig, c.Callback.Path)
	}
	if err := checkPattern(c.Callback.Pattern()); err != nil {
		return fmt.Errorf("%w: callback.path %q: %v", ErrInvalidConfig, c.Callback.Path, err)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: server.shutdown_timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// checkPattern registers pattern on a throwaway mux, turning its panic into an error
func checkPattern(pattern string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	http.NewServeMux().Handle(pattern, http.NotFoundHandler())
	return nil
}
