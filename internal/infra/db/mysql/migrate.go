package mysql

import (
	"context"
	"database/sql"
	"fmt"
)

// Migrate creates the schema when it does not exist yet. Statements are
// idempotent so startup can always run them.
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sources (
  id          BIGINT AUTO_INCREMENT PRIMARY KEY,
  name        VARCHAR(100) NOT NULL,
  description TEXT,
  url         VARCHAR(500) NOT NULL DEFAULT '',
  created_at  DATETIME NOT NULL,
  UNIQUE KEY uq_sources_name (name)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`,

		`CREATE TABLE IF NOT EXISTS categories (
  id          BIGINT AUTO_INCREMENT PRIMARY KEY,
  name        VARCHAR(50) NOT NULL,
  slug        VARCHAR(50) NOT NULL,
  description TEXT,
  UNIQUE KEY uq_categories_slug (slug)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`,

		`CREATE TABLE IF NOT EXISTS articles (
  id           CHAR(36) PRIMARY KEY,
  title        VARCHAR(500) NOT NULL,
  description  TEXT NOT NULL,
  content      MEDIUMTEXT,
  url          VARCHAR(750) NOT NULL,
  url_to_image VARCHAR(1000) NOT NULL DEFAULT '',
  author       VARCHAR(200) NOT NULL DEFAULT '',
  source_id    BIGINT NOT NULL,
  category_id  BIGINT NULL,
  published_at DATETIME NOT NULL,
  language     VARCHAR(10) NOT NULL DEFAULT 'en',
  created_at   DATETIME NOT NULL,
  UNIQUE KEY uq_articles_url (url),
  KEY idx_articles_published (published_at),
  KEY idx_articles_category (category_id, published_at),
  KEY idx_articles_source (source_id, published_at),
  CONSTRAINT fk_articles_source FOREIGN KEY (source_id) REFERENCES sources (id),
  CONSTRAINT fk_articles_category FOREIGN KEY (category_id) REFERENCES categories (id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`,

		`CREATE TABLE IF NOT EXISTS users (
  id            CHAR(36) PRIMARY KEY,
  username      VARCHAR(150) NOT NULL,
  email         VARCHAR(255) NOT NULL,
  password_hash VARCHAR(100) NOT NULL,
  first_name    VARCHAR(150) NOT NULL DEFAULT '',
  last_name     VARCHAR(150) NOT NULL DEFAULT '',
  is_admin      TINYINT(1) NOT NULL DEFAULT 0,
  created_at    DATETIME NOT NULL,
  UNIQUE KEY uq_users_username (username),
  UNIQUE KEY uq_users_email (email)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`,

		`CREATE TABLE IF NOT EXISTS user_profiles (
  user_id                 CHAR(36) PRIMARY KEY,
  bio                     VARCHAR(500) NOT NULL DEFAULT '',
  avatar_url              VARCHAR(500) NOT NULL DEFAULT '',
  location                VARCHAR(100) NOT NULL DEFAULT '',
  website                 VARCHAR(500) NOT NULL DEFAULT '',
  email_notifications     TINYINT(1) NOT NULL DEFAULT 1,
  newsletter_subscription TINYINT(1) NOT NULL DEFAULT 0,
  total_analyses          BIGINT NOT NULL DEFAULT 0,
  last_analysis_at        DATETIME NULL,
  created_at              DATETIME NOT NULL,
  updated_at              DATETIME NOT NULL,
  CONSTRAINT fk_profiles_user FOREIGN KEY (user_id) REFERENCES users (id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`,

		`CREATE TABLE IF NOT EXISTS sessions (
  token         CHAR(36) PRIMARY KEY,
  id            CHAR(36) NOT NULL,
  user_id       CHAR(36) NOT NULL,
  csrf_token    CHAR(36) NOT NULL,
  ip_address    VARCHAR(45) NOT NULL DEFAULT '',
  user_agent    TEXT,
  created_at    DATETIME NOT NULL,
  last_activity DATETIME NOT NULL,
  expires_at    DATETIME NOT NULL,
  active        TINYINT(1) NOT NULL DEFAULT 1,
  UNIQUE KEY uq_sessions_id (id),
  KEY idx_sessions_user (user_id, last_activity),
  CONSTRAINT fk_sessions_user FOREIGN KEY (user_id) REFERENCES users (id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`,

		`CREATE TABLE IF NOT EXISTS analyses (
  id                      CHAR(36) PRIMARY KEY,
  user_id                 CHAR(36) NOT NULL,
  article_id              CHAR(36) NOT NULL,
  political_bias          VARCHAR(20) NOT NULL,
  bias_confidence         DOUBLE NOT NULL,
  bias_reasoning          TEXT,
  positive_sentiment      DOUBLE NOT NULL,
  negative_sentiment      DOUBLE NOT NULL,
  neutral_sentiment       DOUBLE NOT NULL,
  overall_sentiment       DOUBLE NOT NULL,
  emotional_tone          VARCHAR(50) NOT NULL DEFAULT '',
  primary_topics          JSON,
  topic_distribution      JSON,
  key_themes              JSON,
  controversy_level       DOUBLE NOT NULL DEFAULT 0,
  analysis_version        VARCHAR(10) NOT NULL DEFAULT '1.0',
  processing_time_seconds DOUBLE NULL,
  raw_response            JSON,
  created_at              DATETIME NOT NULL,
  UNIQUE KEY uq_analyses_user_article (user_id, article_id),
  KEY idx_analyses_user_created (user_id, created_at),
  KEY idx_analyses_article_created (article_id, created_at),
  KEY idx_analyses_bias (political_bias),
  CONSTRAINT fk_analyses_user FOREIGN KEY (user_id) REFERENCES users (id),
  CONSTRAINT fk_analyses_article FOREIGN KEY (article_id) REFERENCES articles (id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`,

		`CREATE TABLE IF NOT EXISTS read_articles (
  user_id    CHAR(36) NOT NULL,
  article_id CHAR(36) NOT NULL,
  read_at    DATETIME NOT NULL,
  PRIMARY KEY (user_id, article_id),
  KEY idx_reads_user_time (user_id, read_at),
  CONSTRAINT fk_reads_user FOREIGN KEY (user_id) REFERENCES users (id),
  CONSTRAINT fk_reads_article FOREIGN KEY (article_id) REFERENCES articles (id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`,

		`CREATE TABLE IF NOT EXISTS external_errors (
  id           BIGINT AUTO_INCREMENT PRIMARY KEY,
  component    VARCHAR(20) NOT NULL,
  operation    VARCHAR(40) NOT NULL,
  subject      VARCHAR(500) NOT NULL DEFAULT '',
  message      TEXT NOT NULL,
  details_json JSON NULL,
  created_at   DATETIME NOT NULL,
  KEY idx_exterr_component (component, created_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
