/**
 * PostgreSQL Client for the Receipt OCR Worker
 *
 * Persists extracted receipts and tracks processing job lifecycle. Line items
 * and the confidence breakdown are stored as JSONB alongside the scalar
 * fields so downstream consumers query either shape.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/receiptflow/receipt-worker/internal/logging"
	"github.com/receiptflow/receipt-worker/internal/pipeline"
	"github.com/receiptflow/receipt-worker/internal/queue"
)

// PostgresStore handles database operations.
type PostgresStore struct {
	db  *sql.DB
	log *logging.Logger
}

// Receipt is a persisted extraction outcome.
type Receipt struct {
	ID                string
	JobID             string
	UserID            string
	StoreName         string
	TotalAmount       *float64
	Subtotal          *float64
	TaxAmount         *float64
	PurchaseDate      string
	Items             []pipeline.Item
	Category          string
	OverallConfidence float64
	OCRMethod         string
	OCRConfig         string
	CreatedAt         time.Time
}

// sanitizeConfidence clamps to [0,1] and rounds to 4 decimal places so float
// noise like 0.9632000000000001 never reaches the NUMERIC column.
func sanitizeConfidence(confidence float64) float64 {
	if confidence < 0.0 {
		return 0.0
	}
	if confidence > 1.0 {
		return 1.0
	}
	return float64(int(confidence*10000+0.5)) / 10000
}

// NewPostgresStore opens a connection pool and verifies connectivity.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db, log: logging.NewLogger("postgres")}, nil
}

// EnsureSchema creates the worker's tables when absent.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS receipts (
			id UUID PRIMARY KEY,
			job_id TEXT NOT NULL,
			user_id TEXT NOT NULL DEFAULT 'anonymous',
			store_name TEXT NOT NULL,
			total_amount NUMERIC(10,2),
			subtotal NUMERIC(10,2),
			tax_amount NUMERIC(10,2),
			purchase_date DATE,
			items JSONB NOT NULL DEFAULT '[]'::jsonb,
			category TEXT,
			confidence NUMERIC(5,4),
			confidence_breakdown JSONB NOT NULL DEFAULT '{}'::jsonb,
			ocr_method TEXT,
			ocr_config TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS receipts_job_id_idx ON receipts (job_id);
		CREATE INDEX IF NOT EXISTS receipts_user_id_idx ON receipts (user_id);

		CREATE TABLE IF NOT EXISTS processing_jobs (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL DEFAULT 'anonymous',
			filename TEXT,
			status TEXT NOT NULL,
			details JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`

	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// SaveReceipt inserts the extraction result and returns the new receipt ID.
func (p *PostgresStore) SaveReceipt(ctx context.Context, job queue.ReceiptJob, result *pipeline.ExtractionResult) (string, error) {
	itemsJSON, err := json.Marshal(result.Fields.Items)
	if err != nil {
		return "", fmt.Errorf("failed to marshal items: %w", err)
	}
	breakdownJSON, err := json.Marshal(result.ConfidenceBreakdown)
	if err != nil {
		return "", fmt.Errorf("failed to marshal confidence breakdown: %w", err)
	}

	receiptID := uuid.New().String()
	query := `
		INSERT INTO receipts (
			id, job_id, user_id, store_name,
			total_amount, subtotal, tax_amount, purchase_date,
			items, category, confidence, confidence_breakdown,
			ocr_method, ocr_config
		) VALUES (
			$1::uuid, $2, COALESCE(NULLIF($3, ''), 'anonymous'), $4,
			$5, $6, $7, NULLIF($8, '')::date,
			$9::jsonb, NULLIF($10, ''), $11::NUMERIC(5,4), $12::jsonb,
			NULLIF($13, ''), NULLIF($14, '')
		)
		RETURNING id`

	var id string
	err = p.db.QueryRowContext(ctx, query,
		receiptID, job.JobID, job.UserID, result.Fields.StoreName,
		result.Fields.TotalAmount, result.Fields.Subtotal, result.Fields.TaxAmount,
		result.Fields.PurchaseDate,
		itemsJSON, result.SuggestedCategory,
		sanitizeConfidence(result.OverallConfidence), breakdownJSON,
		string(result.Method), result.OCRConfig,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to insert receipt: %w", err)
	}

	p.log.Info("receipt stored", "receiptId", id, "jobId", job.JobID)
	return id, nil
}

// UpdateJobStatus upserts the job's lifecycle record. The worker may observe
// a job before the API created its row, so the first update creates it.
func (p *PostgresStore) UpdateJobStatus(ctx context.Context, jobID, status string, details map[string]interface{}) error {
	if jobID == "" {
		return fmt.Errorf("job ID is required")
	}
	if status == "" {
		return fmt.Errorf("status is required")
	}

	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to marshal details: %w", err)
	}

	query := `
		INSERT INTO processing_jobs (id, status, details, created_at, updated_at)
		VALUES ($1, $2, COALESCE($3::jsonb, '{}'::jsonb), NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			details = processing_jobs.details || EXCLUDED.details,
			updated_at = NOW()`

	if _, err := p.db.ExecContext(ctx, query, jobID, status, detailsJSON); err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}
	return nil
}

// GetReceipt loads a stored receipt by ID.
func (p *PostgresStore) GetReceipt(ctx context.Context, id string) (*Receipt, error) {
	query := `
		SELECT id, job_id, user_id, store_name,
			total_amount, subtotal, tax_amount,
			COALESCE(purchase_date::text, ''),
			items, COALESCE(category, ''), COALESCE(confidence, 0),
			COALESCE(ocr_method, ''), COALESCE(ocr_config, ''), created_at
		FROM receipts WHERE id = $1::uuid`

	var r Receipt
	var itemsJSON []byte
	err := p.db.QueryRowContext(ctx, query, id).Scan(
		&r.ID, &r.JobID, &r.UserID, &r.StoreName,
		&r.TotalAmount, &r.Subtotal, &r.TaxAmount,
		&r.PurchaseDate,
		&itemsJSON, &r.Category, &r.OverallConfidence,
		&r.OCRMethod, &r.OCRConfig, &r.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("receipt %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load receipt: %w", err)
	}

	if err := json.Unmarshal(itemsJSON, &r.Items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal items: %w", err)
	}
	return &r, nil
}

// Ping verifies database connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close releases the connection pool.
func (p *PostgresStore) Close() error {
	return p.db.Close()
}
