package repository

import (
	"context"
	"database/sql/driver"
	"fmt"
	"net"
	"strings"

	"helpboard_miniapp/pkg/logger"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict means a conditional write lost a concurrent race.
	// Expected under contention on accept, not an infrastructure failure.
	ErrVersionConflict = errors.New("version conflict")

	// ErrDuplicateEntry means a ledger append hit an existing idempotency
	// key. It is the signal that makes completion scoring retry-safe.
	ErrDuplicateEntry = errors.New("duplicate ledger entry")

	// ErrStoreUnavailable means the database could not be reached or is
	// shedding load. Transient: callers may retry with backoff, and a retry
	// with the same idempotency key is always safe.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// storeErr classifies transient infrastructure failures as
// ErrStoreUnavailable so callers can tell "retry with backoff" apart from a
// logic error. Anything else passes through unchanged.
func storeErr(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08 is connection exceptions, class 53 insufficient
		// resources, 57P03 server still starting up.
		switch {
		case strings.HasPrefix(pgErr.Code, "08"),
			strings.HasPrefix(pgErr.Code, "53"),
			pgErr.Code == "57P03":
			return errors.Wrap(ErrStoreUnavailable, err.Error())
		}
		return err
	}

	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.As(err, &netErr) {
		return errors.Wrap(ErrStoreUnavailable, err.Error())
	}

	return err
}

type Repository struct {
	db *sqlx.DB
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) Transaction(ctx context.Context, t func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return storeErr(err)
	}
	err = t(tx)
	if err != nil {
		txErr := tx.Rollback()
		if txErr != nil {
			return errors.Wrapf(err, "rollback error: %v", txErr)
		}
		return err
	}
	return storeErr(tx.Commit())
}

type Config struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func New(cfg Config) (*Repository, error) {
	db, err := sqlx.Connect("pgx", cfg.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	err = db.Ping()
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Logger().Info("Connected to database successfully")

	return &Repository{db: db}, nil
}

func (c *Config) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Name,
	)
}
