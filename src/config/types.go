package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"
)

type Environment string

const (
	Live Environment = "live"
	Dev  Environment = "dev"
)

type StoreKind string

const (
	StorePostgres StoreKind = "postgres"
	StoreSQLite   StoreKind = "sqlite"
)

type SeenBackendKind string

const (
	SeenFile  SeenBackendKind = "file"
	SeenRedis SeenBackendKind = "redis"
	SeenNone  SeenBackendKind = "none"
)

type RecapConfig struct {
	Env       Environment
	LogLevel  zerolog.Level
	LogFormat string // "pretty" or "json"

	// The word an opening post's subject must contain for its thread to be
	// scanned. Not user input.
	Subject string

	Board    BoardConfig
	Store    StoreConfig
	Postgres PostgresConfig
	Seen     SeenConfig
	Media    MediaConfig
	Schedule ScheduleConfig
}

type BoardConfig struct {
	Name           string
	APIBaseUrl     string
	MediaBaseUrl   string
	RequestTimeout time.Duration
	RetryAttempts  uint
	RetryDelay     time.Duration
	UserAgent      string
}

type StoreConfig struct {
	Kind       StoreKind
	SQLitePath string
}

type PostgresConfig struct {
	User     string
	Password string
	Hostname string
	Port     int
	DbName   string
	LogLevel tracelog.LogLevel
	MinConn  int32
	MaxConn  int32
}

func (info PostgresConfig) DSN() string {
	return fmt.Sprintf("user=%s password=%s host=%s port=%d dbname=%s", info.User, url.QueryEscape(info.Password), info.Hostname, info.Port, info.DbName)
}

type SeenConfig struct {
	Backend SeenBackendKind
	Path    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

type MediaConfig struct {
	Bucket   string
	Region   string
	Endpoint string
	Key      string
	Secret   string
}

func (m MediaConfig) Enabled() bool {
	return m.Bucket != ""
}

type ScheduleConfig struct {
	Cron string
}
