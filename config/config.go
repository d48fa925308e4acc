package config

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/mitchellh/mapstructure"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	session "github.com/goliatone/go-auth-session"
	"github.com/goliatone/go-auth-session/identity"
	"github.com/goliatone/go-auth-session/storage"
)

const EnvPrefix = "SESSION"

const TextCodeConfigInvalid = "SESSION_CONFIG_INVALID"

const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverRedis  = "redis"
	DriverSQL    = "sql"
)

type IdentityConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	CurrentUserPath string        `mapstructure:"current_user_path"`
	LogoutPath      string        `mapstructure:"logout_path"`
}

type StorageConfig struct {
	Driver      string        `mapstructure:"driver"`
	AppName     string        `mapstructure:"app_name"`
	FilePath    string        `mapstructure:"file_path"`
	RedisAddr   string        `mapstructure:"redis_addr"`
	RedisDB     int           `mapstructure:"redis_db"`
	RedisPrefix string        `mapstructure:"redis_prefix"`
	RedisTTL    time.Duration `mapstructure:"redis_ttl"`
	SQLDSN      string        `mapstructure:"sql_dsn"`
}

// AppConfig is the full session configuration. Session paths and names
// sit at the top level, SESSION_LOGIN_PATH overrides login_path.
type AppConfig struct {
	session.Options `mapstructure:",squash"`

	ExpiryPrecheck bool           `mapstructure:"expiry_precheck"`
	Identity       IdentityConfig `mapstructure:"identity"`
	Storage        StorageConfig  `mapstructure:"storage"`
}

// Load reads configuration from file (or config.yaml in the usual
// locations when file is empty) and SESSION_ prefixed environment
// variables. A missing config file is not an error.
func Load(file string) (*AppConfig, error) {
	v := viper.New()
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, invalidConfig(err, "load config file", map[string]any{"file": v.ConfigFileUsed()})
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, invalidConfig(err, "unmarshal config", nil)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("credential_key", session.DefaultCredentialKey)
	v.SetDefault("login_path", session.DefaultLoginPath)
	v.SetDefault("landing_path", session.DefaultLandingPath)
	v.SetDefault("callback_path", session.DefaultCallbackPath)
	v.SetDefault("credential_param", session.DefaultCredentialParam)
	v.SetDefault("error_param", session.DefaultErrorParam)
	v.SetDefault("error_indicator", session.DefaultErrorIndicator)
	v.SetDefault("expiry_precheck", false)

	v.SetDefault("identity.base_url", "")
	v.SetDefault("identity.timeout", identity.DefaultTimeout.String())
	v.SetDefault("identity.current_user_path", identity.DefaultCurrentUserPath)
	v.SetDefault("identity.logout_path", identity.DefaultLogoutPath)

	v.SetDefault("storage.driver", DriverFile)
	v.SetDefault("storage.app_name", "session")
	v.SetDefault("storage.file_path", "")
	v.SetDefault("storage.redis_addr", "127.0.0.1:6379")
	v.SetDefault("storage.redis_db", 0)
	v.SetDefault("storage.redis_prefix", "credential:")
	v.SetDefault("storage.redis_ttl", "0s")
	v.SetDefault("storage.sql_dsn", "file:session.db")
}

// StoreOptions returns the store options implied by the configuration
func (c *AppConfig) StoreOptions() []session.StoreOption {
	opts := []session.StoreOption{session.WithConfig(c.Options)}
	if c.ExpiryPrecheck {
		opts = append(opts, session.WithExpiryPrecheck())
	}
	return opts
}

// IdentityClient builds the HTTP identity client
func (c *AppConfig) IdentityClient() (*identity.Client, error) {
	if c.Identity.BaseURL == "" {
		return nil, goerrors.New("config: identity.base_url is required", goerrors.CategoryValidation).
			WithTextCode(TextCodeConfigInvalid).
			WithMetadata(map[string]any{"field": "identity.base_url"})
	}
	opts := []identity.Option{
		identity.WithCurrentUserPath(c.Identity.CurrentUserPath),
		identity.WithLogoutPath(c.Identity.LogoutPath),
	}
	if c.Identity.Timeout > 0 {
		opts = append(opts, identity.WithHTTPClient(newHTTPClient(c.Identity.Timeout)))
	}
	return identity.NewClient(c.Identity.BaseURL, opts...), nil
}

// OpenCredentialStore opens the configured credential slot. The returned
// close function releases connections held by the backend.
func (c *AppConfig) OpenCredentialStore(ctx context.Context) (session.CredentialStore, func() error, error) {
	noop := func() error { return nil }

	switch strings.ToLower(c.Storage.Driver) {
	case DriverMemory:
		return storage.NewMemoryStore(), noop, nil
	case DriverFile, "":
		path := c.Storage.FilePath
		if path == "" {
			path = storage.DefaultFilePath(c.Storage.AppName)
		}
		return storage.NewFileStore(path), noop, nil
	case DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr: c.Storage.RedisAddr,
			DB:   c.Storage.RedisDB,
		})
		store := storage.NewRedisStore(client,
			storage.WithRedisPrefix(c.Storage.RedisPrefix),
			storage.WithRedisTTL(c.Storage.RedisTTL),
		)
		return store, client.Close, nil
	case DriverSQL:
		sqldb, err := sql.Open(sqliteshim.ShimName, c.Storage.SQLDSN)
		if err != nil {
			return nil, nil, goerrors.Wrap(err, goerrors.CategoryOperation, "config: open sql credential store").
				WithTextCode(storage.TextCodeStorageFailed)
		}
		sqldb.SetMaxOpenConns(1)
		db := bun.NewDB(sqldb, sqlitedialect.New())
		store := storage.NewBunStore(db)
		if err := store.CreateSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return store, db.Close, nil
	default:
		return nil, nil, goerrors.New("config: unknown storage driver", goerrors.CategoryValidation).
			WithTextCode(TextCodeConfigInvalid).
			WithMetadata(map[string]any{"driver": c.Storage.Driver})
	}
}

func invalidConfig(err error, message string, metadata map[string]any) error {
	richErr := goerrors.Wrap(err, goerrors.CategoryValidation, "config: "+message).
		WithTextCode(TextCodeConfigInvalid)
	if metadata != nil {
		richErr = richErr.WithMetadata(metadata)
	}
	return richErr
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}
