package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/provenance-rag/internal/core/domain"
)

// SignalRepository is the structured fact store: append-only inserts, all
// reads served off the (subject_id, fact_type, observed_at DESC) index.
type SignalRepository struct {
	db *sql.DB
}

func NewSignalRepository(db *sql.DB) *SignalRepository {
	return &SignalRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *SignalRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026052801)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS signals (
	id TEXT PRIMARY KEY,
	subject_id TEXT NOT NULL,
	fact_type TEXT NOT NULL,
	value TEXT NOT NULL,
	period TEXT NOT NULL DEFAULT '',
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	observed_at TIMESTAMPTZ NOT NULL,
	source_document_id TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_signals_subject_fact_observed
	ON signals(subject_id, fact_type, observed_at DESC);
CREATE INDEX IF NOT EXISTS idx_signals_source_document
	ON signals(source_document_id);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Insert appends a signal. There are no update or delete paths: multiple
// signals per (subject, fact_type, period) are expected, one per source.
func (r *SignalRepository) Insert(ctx context.Context, signal *domain.Signal) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO signals (
	id, subject_id, fact_type, value, period, confidence, observed_at, source_document_id
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`,
		signal.ID, signal.SubjectID, string(signal.FactType), signal.Value, signal.Period,
		signal.Confidence, signal.ObservedAt, signal.SourceDocumentID,
	)
	if err != nil {
		return fmt.Errorf("insert signal: %w", err)
	}
	return nil
}

func (r *SignalRepository) GetLatest(ctx context.Context, subjectID string, factType domain.FactType, period string) (*domain.Signal, error) {
	query := `
SELECT id, subject_id, fact_type, value, period, confidence, observed_at, source_document_id
FROM signals
WHERE subject_id = $1 AND fact_type = $2
`
	args := []any{subjectID, string(factType)}
	if period != "" {
		query += ` AND period = $3`
		args = append(args, period)
	}
	query += `
ORDER BY observed_at DESC
LIMIT 1
`

	row := r.db.QueryRowContext(ctx, query, args...)
	signal, err := scanSignal(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrSignalNotFound, "get latest signal", err)
		}
		return nil, fmt.Errorf("scan latest signal: %w", err)
	}
	return signal, nil
}

func (r *SignalRepository) GetHistory(ctx context.Context, subjectID string, factType domain.FactType, limit int) ([]domain.Signal, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT id, subject_id, fact_type, value, period, confidence, observed_at, source_document_id
FROM signals
WHERE subject_id = $1 AND fact_type = $2
ORDER BY observed_at DESC
LIMIT $3
`, subjectID, string(factType), limit)
	if err != nil {
		return nil, fmt.Errorf("query signal history: %w", err)
	}
	defer rows.Close()

	return collectSignals(rows)
}

func (r *SignalRepository) GetBySourceDocument(ctx context.Context, documentID string) ([]domain.Signal, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, subject_id, fact_type, value, period, confidence, observed_at, source_document_id
FROM signals
WHERE source_document_id = $1
ORDER BY observed_at DESC
`, documentID)
	if err != nil {
		return nil, fmt.Errorf("query signals by source document: %w", err)
	}
	defer rows.Close()

	return collectSignals(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSignal(row rowScanner) (*domain.Signal, error) {
	var signal domain.Signal
	var factType string

	err := row.Scan(
		&signal.ID, &signal.SubjectID, &factType, &signal.Value, &signal.Period,
		&signal.Confidence, &signal.ObservedAt, &signal.SourceDocumentID,
	)
	if err != nil {
		return nil, err
	}
	signal.FactType = domain.FactType(factType)
	return &signal, nil
}

func collectSignals(rows *sql.Rows) ([]domain.Signal, error) {
	var out []domain.Signal
	for rows.Next() {
		signal, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan signal row: %w", err)
		}
		out = append(out, *signal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signal rows: %w", err)
	}
	return out, nil
}
