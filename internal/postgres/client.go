package postgres

import (
	"context"

	"github.com/cartloop/recurbill/internal/config"
	ierr "github.com/cartloop/recurbill/internal/errors"
	"github.com/cartloop/recurbill/internal/logger"
	"github.com/cartloop/recurbill/internal/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ctxTxKey struct{}

// Querier is the subset of pgx operations shared by the pool and a
// transaction, so repositories run unchanged inside and outside WithTx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// IClient defines the interface for postgres client operations
type IClient interface {
	// WithTx wraps the given function in a transaction. Nested calls join
	// the outer transaction.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	// Querier returns the current transaction if one is in the context, or
	// the pool otherwise.
	Querier(ctx context.Context) Querier

	// Close releases the underlying pool.
	Close()
}

// Client wraps pgxpool.Pool to provide transaction management
type Client struct {
	pool   *pgxpool.Pool
	logger *logger.Logger
}

// NewClient creates a new postgres client from configuration
func NewClient(cfg *config.Configuration, log *logger.Logger) (IClient, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Postgres.GetDSN())
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid postgres configuration").
			Mark(ierr.ErrDatabase)
	}
	if cfg.Postgres.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(cfg.Postgres.MaxOpenConns)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to connect to postgres").
			Mark(ierr.ErrDatabase)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, ierr.WithError(err).
			WithHint("Failed to ping postgres").
			Mark(ierr.ErrDatabase)
	}

	log.Infow("connected to postgres",
		"host", cfg.Postgres.Host,
		"database", cfg.Postgres.DBName,
	)

	return &Client{pool: pool, logger: log}, nil
}

func (c *Client) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to begin transaction").
			Mark(ierr.ErrDatabase)
	}

	txCtx := context.WithValue(ctx, ctxTxKey{}, tx)
	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && rbErr != pgx.ErrTxClosed {
			c.logger.Errorw("failed to rollback transaction",
				"error", rbErr,
				"request_id", types.GetRequestID(ctx),
			)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to commit transaction").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (c *Client) Querier(ctx context.Context) Querier {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return c.pool
}

func (c *Client) Close() {
	c.pool.Close()
}

func txFromContext(ctx context.Context) pgx.Tx {
	if tx, ok := ctx.Value(ctxTxKey{}).(pgx.Tx); ok {
		return tx
	}
	return nil
}
