package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config holds the defaults until Load is called. Packages read it directly,
// the same way they would read a hand-edited config.go.
var Config = Defaults()

func Defaults() RecapConfig {
	return RecapConfig{
		Env:       Dev,
		LogLevel:  zerolog.InfoLevel,
		LogFormat: "pretty",
		Subject:   "agdg",
		Board: BoardConfig{
			Name:           "vg",
			APIBaseUrl:     "https://a.4cdn.org",
			MediaBaseUrl:   "https://i.4cdn.org",
			RequestTimeout: 10 * time.Second,
			RetryAttempts:  3,
			RetryDelay:     time.Second,
			UserAgent:      "recap.agdg.app scraper",
		},
		Store: StoreConfig{
			Kind:       StoreSQLite,
			SQLitePath: "./data/recap.db",
		},
		Postgres: PostgresConfig{
			User:     "recap",
			Hostname: "localhost",
			Port:     5432,
			DbName:   "recap",
			LogLevel: tracelog.LogLevelWarn,
			MinConn:  1,
			MaxConn:  4,
		},
		Seen: SeenConfig{
			Backend:     SeenFile,
			Path:        "./data/seen.json",
			RedisAddr:   "localhost:6379",
			RedisPrefix: "recap:seen:",
		},
		Media: MediaConfig{
			Region: "us-east-1",
		},
		Schedule: ScheduleConfig{
			Cron: "@every 15m",
		},
	}
}

/*
Load overlays the defaults with, in increasing priority:

 1. a recap.yaml in the working directory or ./config
 2. variables from a .env file
 3. RECAP_* environment variables (RECAP_BOARD_NAME, RECAP_POSTGRES_PASSWORD, ...)

A missing file is not an error.
*/
func Load() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("recap")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("RECAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to parse recap.yaml: %w", err)
		}
	}

	cfg, err := fromViper(v, Defaults())
	if err != nil {
		return err
	}
	Config = cfg
	return nil
}

func fromViper(v *viper.Viper, cfg RecapConfig) (RecapConfig, error) {
	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}

	var env, logLevel, storeKind, seenBackend, pgLogLevel string
	str("env", &env)
	str("loglevel", &logLevel)
	str("logformat", &cfg.LogFormat)
	str("subject", &cfg.Subject)

	str("board.name", &cfg.Board.Name)
	str("board.apibaseurl", &cfg.Board.APIBaseUrl)
	str("board.mediabaseurl", &cfg.Board.MediaBaseUrl)
	str("board.useragent", &cfg.Board.UserAgent)
	if v.IsSet("board.requesttimeout") {
		cfg.Board.RequestTimeout = v.GetDuration("board.requesttimeout")
	}
	if v.IsSet("board.retrydelay") {
		cfg.Board.RetryDelay = v.GetDuration("board.retrydelay")
	}
	if v.IsSet("board.retryattempts") {
		cfg.Board.RetryAttempts = v.GetUint("board.retryattempts")
	}

	str("store.kind", &storeKind)
	str("store.sqlitepath", &cfg.Store.SQLitePath)

	str("postgres.user", &cfg.Postgres.User)
	str("postgres.password", &cfg.Postgres.Password)
	str("postgres.hostname", &cfg.Postgres.Hostname)
	str("postgres.dbname", &cfg.Postgres.DbName)
	str("postgres.loglevel", &pgLogLevel)
	if v.IsSet("postgres.port") {
		cfg.Postgres.Port = v.GetInt("postgres.port")
	}
	if v.IsSet("postgres.minconn") {
		cfg.Postgres.MinConn = v.GetInt32("postgres.minconn")
	}
	if v.IsSet("postgres.maxconn") {
		cfg.Postgres.MaxConn = v.GetInt32("postgres.maxconn")
	}

	str("seen.backend", &seenBackend)
	str("seen.path", &cfg.Seen.Path)
	str("seen.redisaddr", &cfg.Seen.RedisAddr)
	str("seen.redispassword", &cfg.Seen.RedisPassword)
	str("seen.redisprefix", &cfg.Seen.RedisPrefix)
	if v.IsSet("seen.redisdb") {
		cfg.Seen.RedisDB = v.GetInt("seen.redisdb")
	}

	str("media.bucket", &cfg.Media.Bucket)
	str("media.region", &cfg.Media.Region)
	str("media.endpoint", &cfg.Media.Endpoint)
	str("media.key", &cfg.Media.Key)
	str("media.secret", &cfg.Media.Secret)

	str("schedule.cron", &cfg.Schedule.Cron)

	if env != "" {
		cfg.Env = Environment(env)
	}
	if logLevel != "" {
		lvl, err := zerolog.ParseLevel(logLevel)
		if err != nil {
			return cfg, fmt.Errorf("bad log level %q: %w", logLevel, err)
		}
		cfg.LogLevel = lvl
	}
	if pgLogLevel != "" {
		lvl, err := tracelog.LogLevelFromString(pgLogLevel)
		if err != nil {
			return cfg, fmt.Errorf("bad postgres log level %q: %w", pgLogLevel, err)
		}
		cfg.Postgres.LogLevel = lvl
	}
	if storeKind != "" {
		switch k := StoreKind(storeKind); k {
		case StorePostgres, StoreSQLite:
			cfg.Store.Kind = k
		default:
			return cfg, fmt.Errorf("unknown store kind %q", storeKind)
		}
	}
	if seenBackend != "" {
		switch k := SeenBackendKind(seenBackend); k {
		case SeenFile, SeenRedis, SeenNone:
			cfg.Seen.Backend = k
		default:
			return cfg, fmt.Errorf("unknown seen backend %q", seenBackend)
		}
	}
	if cfg.Subject == "" {
		return cfg, errors.New("subject must not be empty")
	}

	return cfg, nil
}
