package knowledge

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Rafael-2109/frete-sistema-sub002/internal/common/errors"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/models"
)

const createPatternsTable = `CREATE TABLE IF NOT EXISTS knowledge_patterns (
	id UUID PRIMARY KEY,
	pattern_type TEXT NOT NULL,
	pattern_text TEXT NOT NULL,
	interpretation TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	usage_count INTEGER NOT NULL DEFAULT 1,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	UNIQUE (pattern_type, pattern_text)
)`

const createFeedbackTable = `CREATE TABLE IF NOT EXISTS feedback_records (
	id UUID PRIMARY KEY,
	query TEXT NOT NULL,
	pattern_type TEXT NOT NULL,
	pattern_text TEXT NOT NULL,
	interpretation TEXT NOT NULL,
	outcome TEXT NOT NULL,
	comment TEXT,
	created_at TIMESTAMPTZ NOT NULL
)`

// The conflict branch is a single statement, so concurrent feedback on one key
// cannot lose updates.
const upsertPatternQuery = `INSERT INTO knowledge_patterns
	(id, pattern_type, pattern_text, interpretation, confidence, usage_count, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, 1, $6, $6)
ON CONFLICT (pattern_type, pattern_text) DO UPDATE SET
	confidence = LEAST(1.0, GREATEST(0.1, knowledge_patterns.confidence + $7::double precision)),
	interpretation = CASE WHEN $7::double precision > 0 THEN EXCLUDED.interpretation ELSE knowledge_patterns.interpretation END,
	usage_count = knowledge_patterns.usage_count + 1,
	updated_at = EXCLUDED.updated_at
RETURNING id, pattern_type, pattern_text, interpretation, confidence, usage_count, created_at, updated_at`

const queryPatternsQuery = `SELECT id, pattern_type, pattern_text, interpretation, confidence, usage_count, created_at, updated_at
FROM knowledge_patterns
WHERE strpos($1, pattern_text) > 0
ORDER BY confidence DESC, usage_count DESC, pattern_text ASC
LIMIT $2`

const insertFeedbackQuery = `INSERT INTO feedback_records
	(id, query, pattern_type, pattern_text, interpretation, outcome, comment, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// PostgresRepository stores patterns and feedback in PostgreSQL.
type PostgresRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db, now: time.Now}
}

// Open creates the tables when missing.
func (r *PostgresRepository) Open(ctx context.Context) error {
	for _, stmt := range []string{createPatternsTable, createFeedbackTable} {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return apperrors.NewKnowledgeStoreFailedError("migrate", err)
		}
	}
	return nil
}

func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

func (r *PostgresRepository) UpsertPattern(ctx context.Context, u PatternUpdate) (models.KnowledgePattern, error) {
	var p models.KnowledgePattern
	err := r.db.QueryRowContext(ctx, upsertPatternQuery,
		uuid.New().String(), u.Type, u.Text, u.Interpretation,
		clampConfidence(u.Initial), r.now().UTC(), u.Delta,
	).Scan(&p.ID, &p.PatternType, &p.PatternText, &p.Interpretation,
		&p.Confidence, &p.UsageCount, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return models.KnowledgePattern{}, apperrors.NewKnowledgeStoreFailedError("upsert_pattern", err)
	}
	return p, nil
}

func (r *PostgresRepository) QueryPatterns(ctx context.Context, text string, limit int) ([]models.KnowledgePattern, error) {
	rows, err := r.db.QueryContext(ctx, queryPatternsQuery, text, limit)
	if err != nil {
		return nil, apperrors.NewKnowledgeStoreFailedError("query_patterns", err)
	}
	defer rows.Close()

	var out []models.KnowledgePattern
	for rows.Next() {
		var p models.KnowledgePattern
		if err := rows.Scan(&p.ID, &p.PatternType, &p.PatternText, &p.Interpretation,
			&p.Confidence, &p.UsageCount, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, apperrors.NewKnowledgeStoreFailedError("query_patterns", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewKnowledgeStoreFailedError("query_patterns", err)
	}
	return out, nil
}

func (r *PostgresRepository) AppendFeedback(ctx context.Context, rec models.FeedbackRecord) error {
	_, err := r.db.ExecContext(ctx, insertFeedbackQuery,
		rec.ID, rec.Query, rec.PatternType, rec.PatternText, rec.Interpretation,
		string(rec.Outcome), rec.Comment, rec.CreatedAt,
	)
	if err != nil {
		return apperrors.NewKnowledgeStoreFailedError("append_feedback", err)
	}
	return nil
}
