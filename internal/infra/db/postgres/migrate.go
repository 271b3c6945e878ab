package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Migrate creates the schema when it does not exist yet; statements are
// idempotent so startup can always run them.
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sources (
  id          BIGSERIAL PRIMARY KEY,
  name        VARCHAR(100) NOT NULL,
  description TEXT,
  url         VARCHAR(500) NOT NULL DEFAULT '',
  created_at  TIMESTAMPTZ NOT NULL,
  CONSTRAINT uq_sources_name UNIQUE (name)
);`,

		`CREATE TABLE IF NOT EXISTS categories (
  id          BIGSERIAL PRIMARY KEY,
  name        VARCHAR(50) NOT NULL,
  slug        VARCHAR(50) NOT NULL,
  description TEXT,
  CONSTRAINT uq_categories_slug UNIQUE (slug)
);`,

		`CREATE TABLE IF NOT EXISTS articles (
  id           UUID PRIMARY KEY,
  title        VARCHAR(500) NOT NULL,
  description  TEXT NOT NULL,
  content      TEXT,
  url          VARCHAR(750) NOT NULL,
  url_to_image VARCHAR(1000) NOT NULL DEFAULT '',
  author       VARCHAR(200) NOT NULL DEFAULT '',
  source_id    BIGINT NOT NULL REFERENCES sources (id),
  category_id  BIGINT NULL REFERENCES categories (id),
  published_at TIMESTAMPTZ NOT NULL,
  language     VARCHAR(10) NOT NULL DEFAULT 'en',
  created_at   TIMESTAMPTZ NOT NULL,
  CONSTRAINT uq_articles_url UNIQUE (url)
);`,
		`CREATE INDEX IF NOT EXISTS idx_articles_published ON articles (published_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_articles_category ON articles (category_id, published_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_articles_source ON articles (source_id, published_at DESC);`,

		`CREATE TABLE IF NOT EXISTS users (
  id            UUID PRIMARY KEY,
  username      VARCHAR(150) NOT NULL,
  email         VARCHAR(255) NOT NULL,
  password_hash VARCHAR(100) NOT NULL,
  first_name    VARCHAR(150) NOT NULL DEFAULT '',
  last_name     VARCHAR(150) NOT NULL DEFAULT '',
  is_admin      BOOLEAN NOT NULL DEFAULT FALSE,
  created_at    TIMESTAMPTZ NOT NULL,
  CONSTRAINT uq_users_username UNIQUE (username),
  CONSTRAINT uq_users_email UNIQUE (email)
);`,

		`CREATE TABLE IF NOT EXISTS user_profiles (
  user_id                 UUID PRIMARY KEY REFERENCES users (id),
  bio                     VARCHAR(500) NOT NULL DEFAULT '',
  avatar_url              VARCHAR(500) NOT NULL DEFAULT '',
  location                VARCHAR(100) NOT NULL DEFAULT '',
  website                 VARCHAR(500) NOT NULL DEFAULT '',
  email_notifications     BOOLEAN NOT NULL DEFAULT TRUE,
  newsletter_subscription BOOLEAN NOT NULL DEFAULT FALSE,
  total_analyses          BIGINT NOT NULL DEFAULT 0,
  last_analysis_at        TIMESTAMPTZ NULL,
  created_at              TIMESTAMPTZ NOT NULL,
  updated_at              TIMESTAMPTZ NOT NULL
);`,

		`CREATE TABLE IF NOT EXISTS sessions (
  token         UUID PRIMARY KEY,
  id            UUID NOT NULL UNIQUE,
  user_id       UUID NOT NULL REFERENCES users (id),
  csrf_token    UUID NOT NULL,
  ip_address    VARCHAR(45) NOT NULL DEFAULT '',
  user_agent    TEXT,
  created_at    TIMESTAMPTZ NOT NULL,
  last_activity TIMESTAMPTZ NOT NULL,
  expires_at    TIMESTAMPTZ NOT NULL,
  active        BOOLEAN NOT NULL DEFAULT TRUE
);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions (user_id, last_activity DESC);`,

		`CREATE TABLE IF NOT EXISTS analyses (
  id                      UUID PRIMARY KEY,
  user_id                 UUID NOT NULL REFERENCES users (id),
  article_id              UUID NOT NULL REFERENCES articles (id),
  political_bias          VARCHAR(20) NOT NULL,
  bias_confidence         DOUBLE PRECISION NOT NULL,
  bias_reasoning          TEXT,
  positive_sentiment      DOUBLE PRECISION NOT NULL,
  negative_sentiment      DOUBLE PRECISION NOT NULL,
  neutral_sentiment       DOUBLE PRECISION NOT NULL,
  overall_sentiment       DOUBLE PRECISION NOT NULL,
  emotional_tone          VARCHAR(50) NOT NULL DEFAULT '',
  primary_topics          JSONB,
  topic_distribution      JSONB,
  key_themes              JSONB,
  controversy_level       DOUBLE PRECISION NOT NULL DEFAULT 0,
  analysis_version        VARCHAR(10) NOT NULL DEFAULT '1.0',
  processing_time_seconds DOUBLE PRECISION NULL,
  raw_response            JSONB,
  created_at              TIMESTAMPTZ NOT NULL,
  CONSTRAINT uq_analyses_user_article UNIQUE (user_id, article_id)
);`,
		`CREATE INDEX IF NOT EXISTS idx_analyses_user_created ON analyses (user_id, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_analyses_article_created ON analyses (article_id, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_analyses_bias ON analyses (political_bias);`,

		`CREATE TABLE IF NOT EXISTS read_articles (
  user_id    UUID NOT NULL REFERENCES users (id),
  article_id UUID NOT NULL REFERENCES articles (id),
  read_at    TIMESTAMPTZ NOT NULL,
  PRIMARY KEY (user_id, article_id)
);`,

		`CREATE TABLE IF NOT EXISTS external_errors (
  id           BIGSERIAL PRIMARY KEY,
  component    VARCHAR(20) NOT NULL,
  operation    VARCHAR(40) NOT NULL,
  subject      VARCHAR(500) NOT NULL DEFAULT '',
  message      TEXT NOT NULL,
  details_json JSONB NULL,
  created_at   TIMESTAMPTZ NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_exterr_component ON external_errors (component, created_at DESC);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
