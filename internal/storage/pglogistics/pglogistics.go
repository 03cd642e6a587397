// Package pglogistics is the Postgres-backed store for the whole pipeline.
// Every Mutate* method runs its callback inside a transaction holding a row
// lock on the mutated entity; the callback's changes commit only if it
// returns nil.
package pglogistics

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/BearBump/LogiBox/internal/errs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

const defaultLockTimeout = 5 * time.Second

type Storage struct {
	db          *pgxpool.Pool
	lockTimeout time.Duration
}

type Option func(*Storage)

// WithLockTimeout bounds how long a transaction waits on a row lock before
// giving up with a concurrency conflict.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Storage) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

func New(connString string, opts ...Option) (*Storage, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, errors.Wrap(err, "parse pg config")
	}

	db, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return nil, errors.Wrap(err, "connect pg")
	}

	s := &Storage{db: db, lockTimeout: defaultLockTimeout}
	for _, o := range opts {
		o(s)
	}
	if err := s.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Storage) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

func (s *Storage) Ping(ctx context.Context) error {
	return mapErr(s.db.Ping(ctx), "ping")
}

// inTx runs fn in a read-committed transaction with a bounded lock wait.
func (s *Storage) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return mapErr(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "SELECT set_config('lock_timeout', $1, true)", lockTimeoutSetting(s.lockTimeout)); err != nil {
		return mapErr(err, "set lock timeout")
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return mapErr(err, "commit tx")
	}
	return nil
}

func lockTimeoutSetting(d time.Duration) string {
	return strconv.FormatInt(d.Milliseconds(), 10) + "ms"
}

// mapErr turns driver failures into pipeline error kinds. Errors that already
// carry a kind pass through untouched.
func mapErr(err error, op string) error {
	if err == nil {
		return nil
	}
	if errs.KindOf(err) != "" {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03", "23505":
			return errs.Conflict(op, err)
		case "57P01", "57P02", "57P03", "53300":
			return errs.Upstream(op, err)
		}
		return errors.Wrap(err, op)
	}

	var netErr net.Error
	var connErr *pgconn.ConnectError
	switch {
	case pgconn.Timeout(err), errors.As(err, &connErr), errors.As(err, &netErr):
		return errs.Upstream(op, err)
	}
	return errors.Wrap(err, op)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
