package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/atmx/pricing-engine/internal/contract"
	"github.com/atmx/pricing-engine/internal/model"
	"github.com/atmx/pricing-engine/internal/sim"
)

// Schema is the DDL applied by EnsureSchema. Prices are stored as NUMERIC
// for exact decimal precision; contracts and model parameters as JSONB.
const Schema = `
CREATE TABLE IF NOT EXISTS model_specs (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	kind       TEXT NOT NULL,
	params     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS quotes (
	id             TEXT PRIMARY KEY,
	ticker         TEXT NOT NULL,
	family         TEXT NOT NULL,
	model_ids      TEXT[] NOT NULL,
	contract       JSONB NOT NULL,
	initial_prices DOUBLE PRECISION[] NOT NULL,
	maturity       DOUBLE PRECISION NOT NULL,
	paths          INTEGER NOT NULL,
	steps          INTEGER NOT NULL,
	seed           NUMERIC(20, 0),
	discount_rate  DOUBLE PRECISION NOT NULL,
	price          NUMERIC NOT NULL,
	duration_ms    BIGINT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS quotes_ticker_idx ON quotes (ticker, created_at);
CREATE INDEX IF NOT EXISTS quotes_model_ids_idx ON quotes USING GIN (model_ids);
`

const quoteColumns = `id, ticker, family, model_ids, contract, initial_prices,
	maturity, paths, steps, seed::TEXT, discount_rate, price::TEXT,
	duration_ms, created_at`

// PostgresStore implements Store using PostgreSQL as the source of truth.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the tables and indexes if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	return err
}

func (s *PostgresStore) CreateModel(ctx context.Context, m *model.ModelSpec) error {
	params, err := json.Marshal(m.Params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO model_specs (id, name, kind, params, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.Name, string(m.Kind), params, m.CreatedAt,
	)
	return err
}

func (s *PostgresStore) GetModel(ctx context.Context, id string) (*model.ModelSpec, error) {
	m, err := scanModel(s.pool.QueryRow(ctx,
		`SELECT id, name, kind, params, created_at
		 FROM model_specs WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get model %s: %w", id, notFound(err))
	}
	return m, nil
}

func (s *PostgresStore) ListModels(ctx context.Context) ([]model.ModelSpec, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, kind, params, created_at
		 FROM model_specs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var models []model.ModelSpec
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, err
		}
		models = append(models, *m)
	}
	return models, rows.Err()
}

func (s *PostgresStore) InsertQuote(ctx context.Context, q *model.Quote) error {
	c, err := json.Marshal(q.Contract)
	if err != nil {
		return fmt.Errorf("encode contract: %w", err)
	}
	var seed *string
	if q.Seed != nil {
		v := strconv.FormatUint(*q.Seed, 10)
		seed = &v
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO quotes (id, ticker, family, model_ids, contract, initial_prices,
		                     maturity, paths, steps, seed, discount_rate, price,
		                     duration_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::NUMERIC, $11, $12::NUMERIC, $13, $14)`,
		q.ID, q.Ticker, string(q.Family), q.ModelIDs, c, q.InitialPrices,
		q.Maturity, q.Paths, q.Steps, seed, q.DiscountRate, q.Price.String(),
		q.DurationMS, q.CreatedAt,
	)
	return err
}

func (s *PostgresStore) GetQuote(ctx context.Context, id string) (*model.Quote, error) {
	q, err := scanQuote(s.pool.QueryRow(ctx,
		`SELECT `+quoteColumns+` FROM quotes WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get quote %s: %w", id, notFound(err))
	}
	return q, nil
}

func (s *PostgresStore) ListQuotesByModel(ctx context.Context, modelID string) ([]model.Quote, error) {
	return s.queryQuotes(ctx,
		`SELECT `+quoteColumns+` FROM quotes
		 WHERE model_ids @> ARRAY[$1]::TEXT[] ORDER BY created_at`, modelID)
}

func (s *PostgresStore) ListQuotesByTicker(ctx context.Context, ticker string) ([]model.Quote, error) {
	return s.queryQuotes(ctx,
		`SELECT `+quoteColumns+` FROM quotes
		 WHERE ticker = $1 ORDER BY created_at`, ticker)
}

func (s *PostgresStore) queryQuotes(ctx context.Context, sql string, arg string) ([]model.Quote, error) {
	rows, err := s.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var quotes []model.Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, *q)
	}
	return quotes, rows.Err()
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanModel(row rowScanner) (*model.ModelSpec, error) {
	var m model.ModelSpec
	var kind string
	var params []byte
	if err := row.Scan(&m.ID, &m.Name, &kind, &params, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.Kind = sim.Kind(kind)
	if err := json.Unmarshal(params, &m.Params); err != nil {
		return nil, fmt.Errorf("decode params of model %s: %w", m.ID, err)
	}
	return &m, nil
}

func scanQuote(row rowScanner) (*model.Quote, error) {
	var q model.Quote
	var family, priceS string
	var seedS *string
	var c []byte
	if err := row.Scan(&q.ID, &q.Ticker, &family, &q.ModelIDs, &c, &q.InitialPrices,
		&q.Maturity, &q.Paths, &q.Steps, &seedS, &q.DiscountRate, &priceS,
		&q.DurationMS, &q.CreatedAt); err != nil {
		return nil, err
	}
	q.Family = contract.Family(family)
	if err := json.Unmarshal(c, &q.Contract); err != nil {
		return nil, fmt.Errorf("decode contract of quote %s: %w", q.ID, err)
	}
	if seedS != nil {
		seed, err := strconv.ParseUint(*seedS, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("decode seed of quote %s: %w", q.ID, err)
		}
		q.Seed = &seed
	}
	price, err := decimal.NewFromString(priceS)
	if err != nil {
		return nil, fmt.Errorf("decode price of quote %s: %w", q.ID, err)
	}
	q.Price = price
	return &q, nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}
