package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	domain "github.com/bryanwahyu/newslens/internal/domain/news"
)

type ArticleRepository struct {
	db *sql.DB
}

var _ domain.Repository = (*ArticleRepository)(nil)

func NewArticleRepository(db *sql.DB) *ArticleRepository {
	return &ArticleRepository{db: db}
}

const articleColumns = `
a.id, a.title, a.description, COALESCE(a.content,''), a.url, a.url_to_image, a.author,
a.source_id, s.name, COALESCE(a.category_id,0), COALESCE(c.slug,''),
a.published_at, a.language, a.created_at,
EXISTS(SELECT 1 FROM analyses an WHERE an.article_id = a.id AND an.user_id = ?)`

const articleJoins = `
FROM articles a
JOIN sources s ON s.id = a.source_id
LEFT JOIN categories c ON c.id = a.category_id`

func scanArticle(row interface{ Scan(...any) error }) (*domain.Article, error) {
	var a domain.Article
	if err := row.Scan(
		&a.ID, &a.Title, &a.Description, &a.Content, &a.URL, &a.URLToImage, &a.Author,
		&a.SourceID, &a.SourceName, &a.CategoryID, &a.CategorySlug,
		&a.PublishedAt, &a.Language, &a.CreatedAt,
		&a.HasAnalysis,
	); err != nil {
		return nil, err
	}
	return &a, nil
}

// SaveArticle inserts a write-once article row. A URL collision maps to
// ErrDuplicateURL so ingestion can treat it as already-seen.
func (r *ArticleRepository) SaveArticle(ctx context.Context, a *domain.Article) error {
	const q = `
INSERT INTO articles
(id, title, description, content, url, url_to_image, author,
 source_id, category_id, published_at, language, created_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?);
`
	var categoryID any
	if a.CategoryID != 0 {
		categoryID = a.CategoryID
	}
	published := a.PublishedAt
	if published.IsZero() {
		published = time.Now()
	}
	lang := a.Language
	if lang == "" {
		lang = "en"
	}

	_, err := r.db.ExecContext(ctx, q,
		a.ID, a.Title, a.Description, a.Content, a.URL, a.URLToImage, a.Author,
		a.SourceID, categoryID, published, lang, a.CreatedAt,
	)
	if isDuplicate(err, "uq_articles_url") {
		return domain.ErrDuplicateURL
	}
	return err
}

// Get by ID, with the has-analysis flag computed for forUser
func (r *ArticleRepository) GetArticle(ctx context.Context, id domain.ArticleID, forUser string) (*domain.Article, error) {
	q := `SELECT` + articleColumns + articleJoins + ` WHERE a.id = ? LIMIT 1;`
	a, err := scanArticle(r.db.QueryRowContext(ctx, q, forUser, id))
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return a, err
}

func (r *ArticleRepository) URLExists(ctx context.Context, url string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM articles WHERE url = ? LIMIT 1;`, url).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

var sortColumns = map[string]string{
	"published_at":  "a.published_at ASC",
	"-published_at": "a.published_at DESC",
	"title":         "a.title ASC",
	"-created_at":   "a.created_at DESC",
}

// List with offset/limit pagination and the query-parameter filters
func (r *ArticleRepository) List(ctx context.Context, f domain.ListFilter, forUser string, page, pageSize int) (domain.PaginatedResult, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	where := " WHERE 1=1"
	args := []any{forUser}
	countArgs := []any{}

	addCond := func(cond string, vals ...any) {
		where += " AND " + cond
		args = append(args, vals...)
		countArgs = append(countArgs, vals...)
	}

	if f.CategorySlug != "" {
		addCond("(c.slug = ? OR c.name LIKE ?)", f.CategorySlug, "%"+escapeLikePattern(f.CategorySlug)+"%")
	}
	if f.Source != "" {
		addCond("s.name LIKE ?", "%"+escapeLikePattern(f.Source)+"%")
	}
	if f.Search != "" {
		term := "%" + escapeLikePattern(f.Search) + "%"
		addCond("(a.title LIKE ? OR a.description LIKE ?)", term, term)
	}
	if !f.FromDate.IsZero() {
		addCond("a.published_at >= ?", f.FromDate)
	}
	if !f.ToDate.IsZero() {
		addCond("a.published_at <= ?", f.ToDate)
	}

	order, ok := sortColumns[f.SortBy]
	if !ok {
		order = "a.published_at DESC"
	}

	q := `SELECT` + articleColumns + articleJoins + where +
		fmt.Sprintf(" ORDER BY %s LIMIT ? OFFSET ?;", order)
	args = append(args, pageSize, offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("querying articles: %w", err)
	}
	defer rows.Close()

	articles := make([]*domain.Article, 0, pageSize)
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return domain.PaginatedResult{}, fmt.Errorf("scanning row: %w", err)
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("iterating rows: %w", err)
	}

	var total int64
	countQ := `SELECT COUNT(*)` + articleJoins + where + ";"
	if err := r.db.QueryRowContext(ctx, countQ, countArgs...).Scan(&total); err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("getting total count: %w", err)
	}

	return domain.PaginatedResult{
		Data:       articles,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}, nil
}

// Trending returns the most-analyzed articles since the cutoff.
func (r *ArticleRepository) Trending(ctx context.Context, since time.Time, limit int) ([]*domain.Article, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `SELECT` + articleColumns + `, COUNT(an2.id) AS analysis_count` + articleJoins + `
JOIN analyses an2 ON an2.article_id = a.id AND an2.created_at >= ?
GROUP BY a.id
ORDER BY analysis_count DESC, a.published_at DESC
LIMIT ?;`

	rows, err := r.db.QueryContext(ctx, q, "", since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Article
	for rows.Next() {
		var a domain.Article
		var count int64
		if err := rows.Scan(
			&a.ID, &a.Title, &a.Description, &a.Content, &a.URL, &a.URLToImage, &a.Author,
			&a.SourceID, &a.SourceName, &a.CategoryID, &a.CategorySlug,
			&a.PublishedAt, &a.Language, &a.CreatedAt,
			&a.HasAnalysis, &count,
		); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (r *ArticleRepository) GetOrCreateSource(ctx context.Context, name, description string) (*domain.Source, error) {
	name = stringOrDash(name)

	get := func() (*domain.Source, error) {
		var s domain.Source
		err := r.db.QueryRowContext(ctx,
			`SELECT id, name, COALESCE(description,''), url, created_at FROM sources WHERE name = ? LIMIT 1;`, name,
		).Scan(&s.ID, &s.Name, &s.Description, &s.URL, &s.CreatedAt)
		if err != nil {
			return nil, err
		}
		return &s, nil
	}

	if s, err := get(); err == nil {
		return s, nil
	} else if err != sql.ErrNoRows {
		return nil, err
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sources (name, description, url, created_at) VALUES (?,?,?,?);`,
		name, description, "", time.Now(),
	)
	if err != nil && !isDuplicate(err, "uq_sources_name") {
		return nil, err
	}
	// lost race is fine, the row exists either way
	return get()
}

func (r *ArticleRepository) GetOrCreateCategory(ctx context.Context, slug, name, description string) (*domain.Category, error) {
	get := func() (*domain.Category, error) {
		var c domain.Category
		err := r.db.QueryRowContext(ctx,
			`SELECT id, name, slug, COALESCE(description,'') FROM categories WHERE slug = ? LIMIT 1;`, slug,
		).Scan(&c.ID, &c.Name, &c.Slug, &c.Description)
		if err != nil {
			return nil, err
		}
		return &c, nil
	}

	if c, err := get(); err == nil {
		return c, nil
	} else if err != sql.ErrNoRows {
		return nil, err
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (name, slug, description) VALUES (?,?,?);`,
		name, slug, description,
	)
	if err != nil && !isDuplicate(err, "uq_categories_slug") {
		return nil, err
	}
	return get()
}

func (r *ArticleRepository) ListSources(ctx context.Context) ([]*domain.Source, error) {
	const q = `
SELECT s.id, s.name, COALESCE(s.description,''), s.url, s.created_at, COUNT(a.id)
FROM sources s
LEFT JOIN articles a ON a.source_id = s.id
GROUP BY s.id
HAVING COUNT(a.id) > 0
ORDER BY s.name;`

	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Source
	for rows.Next() {
		var s domain.Source
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.URL, &s.CreatedAt, &s.ArticleCount); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

func (r *ArticleRepository) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	const q = `
SELECT c.id, c.name, c.slug, COALESCE(c.description,''), COUNT(a.id)
FROM categories c
LEFT JOIN articles a ON a.category_id = c.id
GROUP BY c.id
ORDER BY c.name;`

	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.ArticleCount); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// MarkRead records the read; repeat calls are a no-op.
func (r *ArticleRepository) MarkRead(ctx context.Context, userID string, id domain.ArticleID, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT IGNORE INTO read_articles (user_id, article_id, read_at) VALUES (?,?,?);`,
		userID, id, at,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *ArticleRepository) RecentReads(ctx context.Context, userID string, limit int) ([]*domain.ReadArticle, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT ra.article_id, a.title, ra.read_at
FROM read_articles ra
JOIN articles a ON a.id = ra.article_id
WHERE ra.user_id = ?
ORDER BY ra.read_at DESC
LIMIT ?;`

	rows, err := r.db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.ReadArticle
	for rows.Next() {
		ra := domain.ReadArticle{UserID: userID}
		if err := rows.Scan(&ra.ArticleID, &ra.Title, &ra.ReadAt); err != nil {
			return nil, err
		}
		out = append(out, &ra)
	}
	return out, rows.Err()
}

// ClearReads drops the user's whole read history, returning how many rows
// were removed.
func (r *ArticleRepository) ClearReads(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM read_articles WHERE user_id = ?;`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
