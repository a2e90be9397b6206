package db

import (
	"context"
	"regexp"
	"time"

	zerologadapter "github.com/jackc/pgx-zerolog"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/tcadamson/recap.agdg.app/src/config"
	"github.com/tcadamson/recap.agdg.app/src/logging"
	"github.com/tcadamson/recap.agdg.app/src/oops"
	"github.com/tcadamson/recap.agdg.app/src/utils"
)

// This interface should match both a direct pgx connection or a pgx transaction.
type ConnOrTx interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)

	// Both raw database connections and transactions in pgx can begin/commit
	// transactions. For transactions it creates a "pseudo-nested transaction"
	// (a savepoint). See the documentation of pgx.Tx.Begin.
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Creates a new connection to the recap database.
// This connection is not safe for concurrent use.
func NewConn(ctx context.Context) (*pgx.Conn, error) {
	return NewConnWithConfig(ctx, config.PostgresConfig{})
}

func NewConnWithConfig(ctx context.Context, cfg config.PostgresConfig) (*pgx.Conn, error) {
	cfg = overrideDefaultConfig(cfg)

	pgcfg, err := pgx.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, oops.New(err, "invalid database config")
	}
	pgcfg.Tracer = newTracer(cfg.LogLevel)

	conn, err := pgx.ConnectConfig(ctx, pgcfg)
	if err != nil {
		return nil, oops.New(err, "failed to connect to database")
	}

	return conn, nil
}

// Creates a connection pool for the recap database.
// The resulting pool is safe for concurrent use.
func NewConnPool(ctx context.Context) (*pgxpool.Pool, error) {
	return NewConnPoolWithConfig(ctx, config.PostgresConfig{})
}

func NewConnPoolWithConfig(ctx context.Context, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	cfg = overrideDefaultConfig(cfg)

	pgcfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, oops.New(err, "invalid database config")
	}
	pgcfg.MinConns = cfg.MinConn
	pgcfg.MaxConns = cfg.MaxConn
	pgcfg.ConnConfig.Tracer = newTracer(cfg.LogLevel)

	pool, err := pgxpool.NewWithConfig(ctx, pgcfg)
	if err != nil {
		return nil, oops.New(err, "failed to create database connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, oops.New(err, "failed to reach database")
	}

	return pool, nil
}

func overrideDefaultConfig(cfg config.PostgresConfig) config.PostgresConfig {
	return config.PostgresConfig{
		User:     utils.OrDefault(cfg.User, config.Config.Postgres.User),
		Password: utils.OrDefault(cfg.Password, config.Config.Postgres.Password),
		Hostname: utils.OrDefault(cfg.Hostname, config.Config.Postgres.Hostname),
		Port:     utils.OrDefault(cfg.Port, config.Config.Postgres.Port),
		DbName:   utils.OrDefault(cfg.DbName, config.Config.Postgres.DbName),
		LogLevel: utils.OrDefault(cfg.LogLevel, config.Config.Postgres.LogLevel),
		MinConn:  utils.OrDefault(cfg.MinConn, config.Config.Postgres.MinConn),
		MaxConn:  utils.OrDefault(cfg.MaxConn, config.Config.Postgres.MaxConn),
	}
}

func newTracer(level tracelog.LogLevel) pgx.QueryTracer {
	return multiTracer{
		&tracelog.TraceLog{
			Logger:   zerologadapter.NewLogger(*logging.GlobalLogger()),
			LogLevel: level,
		},
		slowQueryTracer{threshold: time.Second},
	}
}

type multiTracer []pgx.QueryTracer

var _ pgx.QueryTracer = multiTracer{}

func (mt multiTracer) TraceQueryStart(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	for _, t := range mt {
		ctx = t.TraceQueryStart(ctx, conn, data)
	}
	return ctx
}

func (mt multiTracer) TraceQueryEnd(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryEndData) {
	for _, t := range mt {
		t.TraceQueryEnd(ctx, conn, data)
	}
}

var reQueryName = regexp.MustCompile("---- (.*)\n")

// Queries may be named with a leading `---- Name` comment line so that they
// can be identified in logs.
func GetQueryName(sql string) (string, bool) {
	m := reQueryName.FindStringSubmatch(sql)
	if m != nil {
		return m[1], true
	}
	return "", false
}

type slowQueryStartKey struct{}

type slowQueryStart struct {
	name  string
	start time.Time
}

// slowQueryTracer warns, on the logger attached to the context, about any
// query that takes longer than threshold.
type slowQueryTracer struct {
	threshold time.Duration
}

var _ pgx.QueryTracer = slowQueryTracer{}

func (st slowQueryTracer) TraceQueryStart(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	name := "Unknown query"
	if n, ok := GetQueryName(data.SQL); ok {
		name = n
	}
	return context.WithValue(ctx, slowQueryStartKey{}, slowQueryStart{name: name, start: time.Now()})
}

func (st slowQueryTracer) TraceQueryEnd(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryEndData) {
	started, ok := ctx.Value(slowQueryStartKey{}).(slowQueryStart)
	if !ok {
		return
	}
	if elapsed := time.Since(started.start); elapsed > st.threshold {
		logging.ExtractLogger(ctx).Warn().
			Str("query", started.name).
			Dur("elapsed", elapsed).
			Msg("slow query")
	}
}
