package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/MrEthical07/sessionauth"
	"github.com/MrEthical07/sessionauth/httpapi"
	"github.com/MrEthical07/sessionauth/mail"
)

// EnvPrefix prefixes every environment override. Nested keys use a double
// underscore: AUTHD_AUTH__JWT__ACCESS_SECRET sets auth.jwt.access_secret.
const EnvPrefix = "AUTHD_"

type appConfig struct {
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// Dev runs against in-process Redis, in-memory stores and a logging mailer.
	Dev      bool               `koanf:"dev"`
	Log      logConfig          `koanf:"log"`
	Database databaseConfig     `koanf:"database"`
	Redis    redisConfig        `koanf:"redis"`
	Resend   mail.ResendConfig  `koanf:"resend"`
	HTTP     httpapi.Config     `koanf:"http"`
	Auth     sessionauth.Config `koanf:"auth"`
}

type logConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type databaseConfig struct {
	URL         string `koanf:"url"`
	MaxConns    int32  `koanf:"max_conns"`
	AutoMigrate bool   `koanf:"auto_migrate"`
}

type redisConfig struct {
	Addr         string        `koanf:"addr"`
	Password     string        `koanf:"password"`
	DB           int           `koanf:"db"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

func defaultAppConfig() appConfig {
	return appConfig{
		Addr:            ":4004",
		ShutdownTimeout: 15 * time.Second,
		Log:             logConfig{Level: "info", Format: "json"},
		Database:        databaseConfig{MaxConns: 10},
		Redis: redisConfig{
			Addr:         "localhost:6379",
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		HTTP: httpapi.DefaultConfig(),
		Auth: sessionauth.DefaultConfig(),
	}
}

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"addr":         "addr",
	"dev":          "dev",
	"log-level":    "log.level",
	"log-format":   "log.format",
	"database-url": "database.url",
	"redis-addr":   "redis.addr",
}

// addConfigFlags registers the flags listed in flagKeys on fs. Defaults mirror
// defaultAppConfig so an unset flag never overrides the file or environment.
func addConfigFlags(fs *pflag.FlagSet) {
	def := defaultAppConfig()
	fs.String("addr", def.Addr, "listen address")
	fs.Bool("dev", def.Dev, "use in-process redis, memory stores and a logging mailer")
	fs.String("log-level", def.Log.Level, "log level (debug, info, warn, error)")
	fs.String("log-format", def.Log.Format, "log format (json, text)")
	fs.String("database-url", def.Database.URL, "postgres connection string")
	fs.String("redis-addr", def.Redis.Addr, "redis address")
}

// loadConfig layers defaults, then the YAML file at path (if any), then AUTHD_
// environment variables, then explicitly set flags.
func loadConfig(path string, fs *pflag.FlagSet) (appConfig, error) {
	cfg := defaultAppConfig()
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return cfg, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return cfg, fmt.Errorf("load environment: %w", err)
	}

	if fs != nil {
		provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return cfg, fmt.Errorf("load flags: %w", err)
		}
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}
