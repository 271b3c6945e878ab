package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	sq "github.com/Masterminds/squirrel"

	domain "github.com/bryanwahyu/newslens/internal/domain/news"
)

type ArticleRepository struct {
	db *sql.DB
}

var _ domain.Repository = (*ArticleRepository)(nil)

func NewArticleRepository(db *sql.DB) *ArticleRepository {
	return &ArticleRepository{db: db}
}

// selectArticles builds the base article query; the EXISTS subselect
// computes has_analysis for the requesting user.
func selectArticles(forUser string) sq.SelectBuilder {
	return psql.Select(
		"a.id", "a.title", "a.description", "COALESCE(a.content,'')",
		"a.url", "a.url_to_image", "a.author",
		"a.source_id", "s.name", "COALESCE(a.category_id,0)", "COALESCE(c.slug,'')",
		"a.published_at", "a.language", "a.created_at",
	).
		Column("EXISTS(SELECT 1 FROM analyses an WHERE an.article_id = a.id AND an.user_id::text = ?)", forUser).
		From("articles a").
		Join("sources s ON s.id = a.source_id").
		LeftJoin("categories c ON c.id = a.category_id")
}

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

func (r *ArticleRepository) SaveArticle(ctx context.Context, a *domain.Article) error {
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

	q, args, err := psql.Insert("articles").
		Columns("id", "title", "description", "content", "url", "url_to_image", "author",
			"source_id", "category_id", "published_at", "language", "created_at").
		Values(a.ID, a.Title, a.Description, a.Content, a.URL, a.URLToImage, a.Author,
			a.SourceID, categoryID, published, lang, a.CreatedAt).
		ToSql()
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, q, args...)
	if isDuplicate(err, "uq_articles_url") {
		return domain.ErrDuplicateURL
	}
	return err
}

func (r *ArticleRepository) GetArticle(ctx context.Context, id domain.ArticleID, forUser string) (*domain.Article, error) {
	q, args, err := selectArticles(forUser).Where(sq.Eq{"a.id": id}).Limit(1).ToSql()
	if err != nil {
		return nil, err
	}
	a, err := scanArticle(r.db.QueryRowContext(ctx, q, args...))
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return a, err
}

func (r *ArticleRepository) URLExists(ctx context.Context, url string) (bool, error) {
	q, args, err := psql.Select("1").From("articles").Where(sq.Eq{"url": url}).Limit(1).ToSql()
	if err != nil {
		return false, err
	}
	var one int
	err = r.db.QueryRowContext(ctx, q, args...).Scan(&one)
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

func filterConds(f domain.ListFilter) []sq.Sqlizer {
	var conds []sq.Sqlizer
	if f.CategorySlug != "" {
		conds = append(conds, sq.Or{
			sq.Eq{"c.slug": f.CategorySlug},
			sq.ILike{"c.name": "%" + escapeLikePattern(f.CategorySlug) + "%"},
		})
	}
	if f.Source != "" {
		conds = append(conds, sq.ILike{"s.name": "%" + escapeLikePattern(f.Source) + "%"})
	}
	if f.Search != "" {
		term := "%" + escapeLikePattern(f.Search) + "%"
		conds = append(conds, sq.Or{
			sq.ILike{"a.title": term},
			sq.ILike{"a.description": term},
		})
	}
	if !f.FromDate.IsZero() {
		conds = append(conds, sq.GtOrEq{"a.published_at": f.FromDate})
	}
	if !f.ToDate.IsZero() {
		conds = append(conds, sq.LtOrEq{"a.published_at": f.ToDate})
	}
	return conds
}

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

	order, ok := sortColumns[f.SortBy]
	if !ok {
		order = "a.published_at DESC"
	}

	b := selectArticles(forUser)
	count := psql.Select("COUNT(*)").From("articles a").
		Join("sources s ON s.id = a.source_id").
		LeftJoin("categories c ON c.id = a.category_id")
	for _, cond := range filterConds(f) {
		b = b.Where(cond)
		count = count.Where(cond)
	}

	q, args, err := b.OrderBy(order).Limit(uint64(pageSize)).Offset(uint64(offset)).ToSql()
	if err != nil {
		return domain.PaginatedResult{}, err
	}
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

	cq, cargs, err := count.ToSql()
	if err != nil {
		return domain.PaginatedResult{}, err
	}
	var total int64
	if err := r.db.QueryRowContext(ctx, cq, cargs...).Scan(&total); err != nil {
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

func (r *ArticleRepository) Trending(ctx context.Context, since time.Time, limit int) ([]*domain.Article, error) {
	if limit <= 0 {
		limit = 20
	}
	q, args, err := selectArticles("").
		Column("COUNT(an2.id) AS analysis_count").
		Join("analyses an2 ON an2.article_id = a.id").
		Where(sq.GtOrEq{"an2.created_at": since}).
		GroupBy("a.id", "s.name", "c.slug").
		OrderBy("analysis_count DESC", "a.published_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
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
		q, args, err := psql.Select("id", "name", "COALESCE(description,'')", "url", "created_at").
			From("sources").Where(sq.Eq{"name": name}).Limit(1).ToSql()
		if err != nil {
			return nil, err
		}
		var s domain.Source
		if err := r.db.QueryRowContext(ctx, q, args...).Scan(&s.ID, &s.Name, &s.Description, &s.URL, &s.CreatedAt); err != nil {
			return nil, err
		}
		return &s, nil
	}

	if s, err := get(); err == nil {
		return s, nil
	} else if err != sql.ErrNoRows {
		return nil, err
	}

	q, args, err := psql.Insert("sources").
		Columns("name", "description", "url", "created_at").
		Values(name, description, "", time.Now()).
		Suffix("ON CONFLICT (name) DO NOTHING").
		ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		return nil, err
	}
	return get()
}

func (r *ArticleRepository) GetOrCreateCategory(ctx context.Context, slug, name, description string) (*domain.Category, error) {
	get := func() (*domain.Category, error) {
		q, args, err := psql.Select("id", "name", "slug", "COALESCE(description,'')").
			From("categories").Where(sq.Eq{"slug": slug}).Limit(1).ToSql()
		if err != nil {
			return nil, err
		}
		var c domain.Category
		if err := r.db.QueryRowContext(ctx, q, args...).Scan(&c.ID, &c.Name, &c.Slug, &c.Description); err != nil {
			return nil, err
		}
		return &c, nil
	}

	if c, err := get(); err == nil {
		return c, nil
	} else if err != sql.ErrNoRows {
		return nil, err
	}

	q, args, err := psql.Insert("categories").
		Columns("name", "slug", "description").
		Values(name, slug, description).
		Suffix("ON CONFLICT (slug) DO NOTHING").
		ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		return nil, err
	}
	return get()
}

func (r *ArticleRepository) ListSources(ctx context.Context) ([]*domain.Source, error) {
	q, args, err := psql.Select("s.id", "s.name", "COALESCE(s.description,'')", "s.url", "s.created_at", "COUNT(a.id)").
		From("sources s").
		LeftJoin("articles a ON a.source_id = s.id").
		GroupBy("s.id").
		Having("COUNT(a.id) > 0").
		OrderBy("s.name").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
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
	q, args, err := psql.Select("c.id", "c.name", "c.slug", "COALESCE(c.description,'')", "COUNT(a.id)").
		From("categories c").
		LeftJoin("articles a ON a.category_id = c.id").
		GroupBy("c.id").
		OrderBy("c.name").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
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

func (r *ArticleRepository) MarkRead(ctx context.Context, userID string, id domain.ArticleID, at time.Time) (bool, error) {
	q, args, err := psql.Insert("read_articles").
		Columns("user_id", "article_id", "read_at").
		Values(userID, id, at).
		Suffix("ON CONFLICT (user_id, article_id) DO NOTHING").
		ToSql()
	if err != nil {
		return false, err
	}
	res, err := r.db.ExecContext(ctx, q, args...)
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
	q, args, err := psql.Select("ra.article_id", "a.title", "ra.read_at").
		From("read_articles ra").
		Join("articles a ON a.id = ra.article_id").
		Where(sq.Eq{"ra.user_id": userID}).
		OrderBy("ra.read_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
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
	q, args, err := psql.Delete("read_articles").
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
