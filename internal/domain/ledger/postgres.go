package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Expected schema (migrations are owned by the ledger store collaborator):
//
//	CREATE TABLE ledger_transactions (
//	    id                 UUID PRIMARY KEY,
//	    dedup_key          TEXT NOT NULL UNIQUE,
//	    amount_minor       BIGINT NOT NULL,
//	    currency           TEXT NOT NULL,
//	    direction          TEXT NOT NULL,
//	    vendor             TEXT NOT NULL DEFAULT '',
//	    category           TEXT NOT NULL DEFAULT '',
//	    occurred_at        TIMESTAMPTZ NOT NULL,
//	    status             TEXT NOT NULL,
//	    conf_amount        DOUBLE PRECISION NOT NULL DEFAULT 0,
//	    conf_direction     DOUBLE PRECISION NOT NULL DEFAULT 0,
//	    conf_vendor        DOUBLE PRECISION NOT NULL DEFAULT 0,
//	    conf_category      DOUBLE PRECISION NOT NULL DEFAULT 0,
//	    conf_occurred_at   DOUBLE PRECISION NOT NULL DEFAULT 0,
//	    source_message_ids TEXT[] NOT NULL DEFAULT '{}',
//	    merge_count        INT NOT NULL DEFAULT 0,
//	    revision           BIGINT NOT NULL DEFAULT 1,
//	    created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
//	);

// uniqueViolation is the PostgreSQL error code for unique constraint hits.
const uniqueViolation = "23505"

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store on PostgreSQL. The dedup-key uniqueness
// constraint makes insertion atomic; updates use optimistic revision checks.
type PostgresStore struct {
	db querier
}

// NewPostgresStore creates a ledger store over a pgx pool (or mock).
func NewPostgresStore(db querier) *PostgresStore {
	return &PostgresStore{db: db}
}

const transactionColumns = `
	id, dedup_key, amount_minor, currency, direction, vendor, category,
	occurred_at, status, conf_amount, conf_direction, conf_vendor,
	conf_category, conf_occurred_at, source_message_ids, merge_count,
	revision, created_at, updated_at`

func (s *PostgresStore) Insert(ctx context.Context, tx *Transaction) error {
	query := `
		INSERT INTO ledger_transactions (
			id, dedup_key, amount_minor, currency, direction, vendor, category,
			occurred_at, status, conf_amount, conf_direction, conf_vendor,
			conf_category, conf_occurred_at, source_message_ids, merge_count, revision
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, 1)
		RETURNING revision, created_at, updated_at
	`

	err := s.db.QueryRow(ctx, query,
		tx.ID,
		tx.DedupKey,
		tx.AmountMinor,
		tx.Currency,
		string(tx.Direction),
		tx.Vendor,
		tx.Category,
		tx.OccurredAt,
		string(tx.Status),
		tx.Confidence.Amount,
		tx.Confidence.Direction,
		tx.Confidence.Vendor,
		tx.Confidence.Category,
		tx.Confidence.OccurredAt,
		tx.SourceMessageIDs,
		tx.MergeCount,
	).Scan(&tx.Revision, &tx.CreatedAt, &tx.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicateKey
	}
	return err
}

func (s *PostgresStore) Update(ctx context.Context, tx *Transaction) error {
	query := `
		UPDATE ledger_transactions
		SET vendor = $3, category = $4, occurred_at = $5, status = $6,
			conf_amount = $7, conf_direction = $8, conf_vendor = $9,
			conf_category = $10, conf_occurred_at = $11,
			source_message_ids = $12, merge_count = $13,
			revision = revision + 1, updated_at = now()
		WHERE dedup_key = $1 AND revision = $2
	`

	tag, err := s.db.Exec(ctx, query,
		tx.DedupKey,
		tx.Revision,
		tx.Vendor,
		tx.Category,
		tx.OccurredAt,
		string(tx.Status),
		tx.Confidence.Amount,
		tx.Confidence.Direction,
		tx.Confidence.Vendor,
		tx.Confidence.Category,
		tx.Confidence.OccurredAt,
		tx.SourceMessageIDs,
		tx.MergeCount,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleRevision
	}

	tx.Revision++
	tx.UpdatedAt = time.Now()
	return nil
}

func (s *PostgresStore) GetByDedupKey(ctx context.Context, key string) (*Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM ledger_transactions WHERE dedup_key = $1`

	row, err := scanTransaction(s.db.QueryRow(ctx, query, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM ledger_transactions ORDER BY occurred_at`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *tx)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Categories(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT category
		FROM ledger_transactions
		WHERE category <> '' AND status <> 'superseded'
		ORDER BY category
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CategorySeries(ctx context.Context, category string, until time.Time) ([]SeriesPoint, error) {
	query := `
		SELECT date_trunc('month', occurred_at AT TIME ZONE 'UTC') AS period,
			SUM(amount_minor) AS total_minor,
			COUNT(*) AS tx_count
		FROM ledger_transactions
		WHERE LOWER(category) = LOWER($1)
			AND direction = 'debit'
			AND status <> 'superseded'
			AND occurred_at < $2
		GROUP BY period
		ORDER BY period
	`

	rows, err := s.db.Query(ctx, query, category, MonthStart(until))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SeriesPoint
	for rows.Next() {
		var p SeriesPoint
		if err := rows.Scan(&p.Period, &p.TotalMinor, &p.Count); err != nil {
			return nil, err
		}
		p.Period = p.Period.UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) VendorHistory(ctx context.Context) ([]VendorStat, error) {
	query := `
		SELECT vendor, category, COUNT(*) AS tx_count
		FROM ledger_transactions
		WHERE vendor <> '' AND category <> '' AND status <> 'superseded'
		GROUP BY vendor, category
		ORDER BY tx_count DESC, vendor
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []VendorStat
	for rows.Next() {
		var v VendorStat
		if err := rows.Scan(&v.Vendor, &v.Category, &v.Count); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Version sums row revisions; rows are never deleted and revisions only
// grow, so the result is monotonic across commits.
func (s *PostgresStore) Version(ctx context.Context) (int64, error) {
	var v int64
	err := s.db.QueryRow(ctx, `SELECT COALESCE(SUM(revision), 0) FROM ledger_transactions`).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("failed to read ledger version: %w", err)
	}
	return v, nil
}

func scanTransaction(row pgx.Row) (*Transaction, error) {
	var tx Transaction
	var direction, status string
	err := row.Scan(
		&tx.ID,
		&tx.DedupKey,
		&tx.AmountMinor,
		&tx.Currency,
		&direction,
		&tx.Vendor,
		&tx.Category,
		&tx.OccurredAt,
		&status,
		&tx.Confidence.Amount,
		&tx.Confidence.Direction,
		&tx.Confidence.Vendor,
		&tx.Confidence.Category,
		&tx.Confidence.OccurredAt,
		&tx.SourceMessageIDs,
		&tx.MergeCount,
		&tx.Revision,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	tx.Direction = Direction(direction)
	tx.Status = Status(status)
	return &tx, nil
}

var _ Store = (*PostgresStore)(nil)
