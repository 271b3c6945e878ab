package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	domain "github.com/bryanwahyu/newslens/internal/domain/analysis"
)

type AnalysisRepository struct {
	db *sql.DB
}

var _ domain.Repository = (*AnalysisRepository)(nil)

func NewAnalysisRepository(db *sql.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

const analysisColumns = `
an.id, an.user_id, an.article_id,
an.political_bias, an.bias_confidence, COALESCE(an.bias_reasoning,''),
an.positive_sentiment, an.negative_sentiment, an.neutral_sentiment,
an.overall_sentiment, an.emotional_tone,
an.primary_topics, an.topic_distribution, an.key_themes,
an.controversy_level, an.analysis_version, COALESCE(an.processing_time_seconds,0),
an.raw_response, an.created_at,
a.title, COALESCE(c.slug,'')`

const analysisJoins = `
FROM analyses an
JOIN articles a ON a.id = an.article_id
LEFT JOIN categories c ON c.id = a.category_id`

// Save inserts a write-once analysis row. The (user, article) unique key is
// the race backstop; collisions map to ErrDuplicateAnalysis.
func (r *AnalysisRepository) Save(ctx context.Context, a *domain.Analysis) error {
	const q = `
INSERT INTO analyses
(id, user_id, article_id, political_bias, bias_confidence, bias_reasoning,
 positive_sentiment, negative_sentiment, neutral_sentiment, overall_sentiment,
 emotional_tone, primary_topics, topic_distribution, key_themes,
 controversy_level, analysis_version, processing_time_seconds, raw_response, created_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?);
`
	topics, err := json.Marshal(a.PrimaryTopics)
	if err != nil {
		return fmt.Errorf("marshal primary_topics: %w", err)
	}
	weights, err := json.Marshal(a.TopicWeights)
	if err != nil {
		return fmt.Errorf("marshal topic_distribution: %w", err)
	}
	themes, err := json.Marshal(a.KeyThemes)
	if err != nil {
		return fmt.Errorf("marshal key_themes: %w", err)
	}
	raw := string(a.RawResponse)
	if strings.TrimSpace(raw) == "" {
		// raw_response column requires valid JSON; use empty object
		raw = "{}"
	}
	version := a.Version
	if version == "" {
		version = "1.0"
	}
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = r.db.ExecContext(ctx, q,
		a.ID, a.UserID, a.ArticleID, a.Bias, a.BiasConfidence, a.BiasReasoning,
		a.Positive, a.Negative, a.Neutral, a.OverallSentiment,
		a.EmotionalTone, topics, weights, themes,
		a.Controversy, version, a.ProcessingSecs, raw, createdAt,
	)
	if isDuplicate(err, "uq_analyses_user_article") {
		return domain.ErrDuplicateAnalysis
	}
	return err
}

func scanAnalysis(row interface{ Scan(...any) error }) (*domain.Analysis, error) {
	var a domain.Analysis
	var topics, weights, themes []byte
	var raw sql.NullString
	if err := row.Scan(
		&a.ID, &a.UserID, &a.ArticleID,
		&a.Bias, &a.BiasConfidence, &a.BiasReasoning,
		&a.Positive, &a.Negative, &a.Neutral,
		&a.OverallSentiment, &a.EmotionalTone,
		&topics, &weights, &themes,
		&a.Controversy, &a.Version, &a.ProcessingSecs,
		&raw, &a.CreatedAt,
		&a.ArticleTitle, &a.ArticleCategory,
	); err != nil {
		return nil, err
	}
	if len(topics) > 0 {
		if err := json.Unmarshal(topics, &a.PrimaryTopics); err != nil {
			return nil, fmt.Errorf("unmarshal primary_topics: %w", err)
		}
	}
	if len(weights) > 0 {
		if err := json.Unmarshal(weights, &a.TopicWeights); err != nil {
			return nil, fmt.Errorf("unmarshal topic_distribution: %w", err)
		}
	}
	if len(themes) > 0 {
		if err := json.Unmarshal(themes, &a.KeyThemes); err != nil {
			return nil, fmt.Errorf("unmarshal key_themes: %w", err)
		}
	}
	if raw.Valid {
		a.RawResponse = json.RawMessage(raw.String)
	}
	a.BiasScore = a.Bias.Score()
	return &a, nil
}

func (r *AnalysisRepository) Get(ctx context.Context, id domain.AnalysisID) (*domain.Analysis, error) {
	q := `SELECT` + analysisColumns + analysisJoins + ` WHERE an.id = ? LIMIT 1;`
	a, err := scanAnalysis(r.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return a, err
}

func (r *AnalysisRepository) GetByUserArticle(ctx context.Context, userID, articleID string) (*domain.Analysis, error) {
	q := `SELECT` + analysisColumns + analysisJoins + ` WHERE an.user_id = ? AND an.article_id = ? LIMIT 1;`
	a, err := scanAnalysis(r.db.QueryRowContext(ctx, q, userID, articleID))
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return a, err
}

// Paginate with offset + limit (classic pagination)
func (r *AnalysisRepository) Paginate(ctx context.Context, userID string, f domain.ListFilter, page, pageSize int) (domain.PaginatedResult, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 15
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	where := ` WHERE an.user_id = ?`
	args := []any{userID}

	if f.Bias != "" {
		where += " AND an.political_bias = ?"
		args = append(args, f.Bias)
	}
	if f.CategorySlug != "" {
		where += " AND c.slug = ?"
		args = append(args, f.CategorySlug)
	}
	if f.MinControversy > 0 {
		where += " AND an.controversy_level >= ?"
		args = append(args, f.MinControversy)
	}
	if !f.FromDate.IsZero() {
		where += " AND an.created_at >= ?"
		args = append(args, f.FromDate)
	}
	if !f.ToDate.IsZero() {
		where += " AND an.created_at <= ?"
		args = append(args, f.ToDate)
	}

	q := `SELECT` + analysisColumns + analysisJoins + where + `
ORDER BY an.created_at DESC, an.id DESC
LIMIT ? OFFSET ?;`
	rows, err := r.db.QueryContext(ctx, q, append(args, pageSize, offset)...)
	if err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("querying analyses: %w", err)
	}
	defer rows.Close()

	list := make([]*domain.Analysis, 0, pageSize)
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return domain.PaginatedResult{}, fmt.Errorf("scanning row: %w", err)
		}
		list = append(list, a)
	}
	if err := rows.Err(); err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("iterating rows: %w", err)
	}

	var total int64
	countQ := `SELECT COUNT(*)` + analysisJoins + where + ";"
	if err := r.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("getting total count: %w", err)
	}

	return domain.PaginatedResult{
		Data:       list,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}, nil
}

// ListForUser returns the user's analyses newest first, capped at limit;
// stats are computed from these rows in the application layer.
func (r *AnalysisRepository) ListForUser(ctx context.Context, userID string, limit int) ([]*domain.Analysis, error) {
	if limit <= 0 {
		limit = 1000
	}
	q := `SELECT` + analysisColumns + analysisJoins + `
WHERE an.user_id = ?
ORDER BY an.created_at DESC
LIMIT ?;`

	rows, err := r.db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
