// forum/db.go
package forum

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS users (
    id BIGSERIAL PRIMARY KEY,
    username TEXT NOT NULL UNIQUE,
    email TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    role TEXT NOT NULL DEFAULT 'member',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS categories (
    id BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS topics (
    id BIGSERIAL PRIMARY KEY,
    category_id BIGINT NOT NULL REFERENCES categories(id),
    user_id BIGINT NOT NULL REFERENCES users(id),
    title TEXT NOT NULL,
    pinned BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS posts (
    id BIGSERIAL PRIMARY KEY,
    topic_id BIGINT NOT NULL REFERENCES topics(id),
    user_id BIGINT NOT NULL REFERENCES users(id),
    content TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS sightings (
    id BIGSERIAL PRIMARY KEY,
    reporter_name TEXT NOT NULL,
    contact TEXT,
    report_type TEXT NOT NULL,
    subject_choice TEXT,
    what_sighted TEXT NOT NULL,
    occurred_at TEXT NOT NULL,
    location TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_topics_on_category_id ON topics(category_id);
CREATE INDEX IF NOT EXISTS idx_posts_on_topic_id ON posts(topic_id);
`

const pgTopicSummaryColumns = `
    t.id, t.title, t.pinned, t.created_at, t.updated_at,
    c.id, c.name, u.username,
    (SELECT COUNT(*) FROM posts p WHERE p.topic_id = t.id)
FROM topics t
JOIN categories c ON c.id = t.category_id
JOIN users u ON u.id = t.user_id`

// Database is the PostgreSQL backed Store.
type Database struct {
	pool *pgxpool.Pool
}

func NewDatabase(connectionString string) (*Database, error) {
	pool, err := pgxpool.New(context.Background(), connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Database{pool: pool}, nil
}

func (d *Database) Close() {
	d.pool.Close()
}

func (d *Database) CreateTables(ctx context.Context) error {
	if _, err := d.pool.Exec(ctx, pgSchema); err != nil {
		return fmt.Errorf("error creating tables: %w", err)
	}
	return d.seedCategories(ctx)
}

func (d *Database) seedCategories(ctx context.Context) error {
	var count int
	if err := d.pool.QueryRow(ctx, `SELECT COUNT(*) FROM categories`).Scan(&count); err != nil {
		return fmt.Errorf("error counting categories: %w", err)
	}
	if count > 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, c := range seedCategories {
		batch.Queue(`INSERT INTO categories (name, description) VALUES ($1, $2)`, c.Name, c.Description)
	}
	if err := d.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("error seeding categories: %w", err)
	}
	return nil
}

// --- Stats and Category Functions ---

func (d *Database) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	query := `SELECT
        (SELECT COUNT(*) FROM users),
        (SELECT COUNT(*) FROM topics),
        (SELECT COUNT(*) FROM posts)`
	err := d.pool.QueryRow(ctx, query).Scan(&s.Members, &s.Topics, &s.Posts)
	return s, err
}

func (d *Database) ListCategories(ctx context.Context) ([]Category, error) {
	query := `SELECT c.id, c.name, c.description, c.created_at,
        (SELECT COUNT(*) FROM topics t WHERE t.category_id = c.id)
        FROM categories c
        ORDER BY c.name ASC`
	rows, err := d.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var categories []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.TopicCount); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (d *Database) GetCategory(ctx context.Context, id int64) (*Category, error) {
	var c Category
	query := `SELECT id, name, description, created_at FROM categories WHERE id = $1`
	err := d.pool.QueryRow(ctx, query, id).Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// --- Topic Functions ---

func (d *Database) LatestTopics(ctx context.Context, limit int) ([]TopicSummary, error) {
	query := `SELECT` + pgTopicSummaryColumns + `
        ORDER BY t.pinned DESC, t.updated_at DESC, t.id DESC
        LIMIT $1`
	return d.topicSummaries(ctx, query, limit)
}

func (d *Database) TopicsByCategory(ctx context.Context, categoryID int64) ([]TopicSummary, error) {
	query := `SELECT` + pgTopicSummaryColumns + `
        WHERE t.category_id = $1
        ORDER BY t.pinned DESC, t.updated_at DESC, t.id DESC`
	return d.topicSummaries(ctx, query, categoryID)
}

func (d *Database) topicSummaries(ctx context.Context, query string, args ...any) ([]TopicSummary, error) {
	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var topics []TopicSummary
	for rows.Next() {
		var t TopicSummary
		if err := rows.Scan(&t.ID, &t.Title, &t.Pinned, &t.CreatedAt, &t.UpdatedAt,
			&t.CategoryID, &t.CategoryName, &t.Author, &t.PostsTotal); err != nil {
			return nil, err
		}
		t.setReplies()
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

func (d *Database) GetTopic(ctx context.Context, id int64) (*Topic, error) {
	var t Topic
	query := `SELECT t.id, t.category_id, c.name, t.user_id, u.username, t.title, t.pinned, t.created_at, t.updated_at
        FROM topics t
        JOIN categories c ON c.id = t.category_id
        JOIN users u ON u.id = t.user_id
        WHERE t.id = $1`
	err := d.pool.QueryRow(ctx, query, id).Scan(&t.ID, &t.CategoryID, &t.CategoryName, &t.UserID,
		&t.Author, &t.Title, &t.Pinned, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (d *Database) CreateTopic(ctx context.Context, topic *Topic, opener *Post) error {
	return pgx.BeginFunc(ctx, d.pool, func(tx pgx.Tx) error {
		query := `INSERT INTO topics (category_id, user_id, title, pinned) VALUES ($1, $2, $3, $4)
            RETURNING id, created_at, updated_at`
		err := tx.QueryRow(ctx, query, topic.CategoryID, topic.UserID, topic.Title, topic.Pinned).
			Scan(&topic.ID, &topic.CreatedAt, &topic.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert topic: %w", classifyPg(err))
		}
		opener.TopicID = topic.ID
		query = `INSERT INTO posts (topic_id, user_id, content) VALUES ($1, $2, $3) RETURNING id, created_at`
		err = tx.QueryRow(ctx, query, opener.TopicID, opener.UserID, opener.Content).Scan(&opener.ID, &opener.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert opening post: %w", classifyPg(err))
		}
		return nil
	})
}

// --- Post Functions ---

func (d *Database) PostsByTopic(ctx context.Context, topicID int64) ([]Post, error) {
	query := `SELECT p.id, p.topic_id, p.user_id, p.content, p.created_at, u.username, u.role
        FROM posts p
        JOIN users u ON u.id = p.user_id
        WHERE p.topic_id = $1
        ORDER BY p.created_at ASC, p.id ASC`
	rows, err := d.pool.Query(ctx, query, topicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var posts []Post
	for rows.Next() {
		var p Post
		if err := rows.Scan(&p.ID, &p.TopicID, &p.UserID, &p.Content, &p.CreatedAt, &p.Username, &p.AuthorRole); err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func (d *Database) CreateReply(ctx context.Context, post *Post) error {
	return pgx.BeginFunc(ctx, d.pool, func(tx pgx.Tx) error {
		query := `INSERT INTO posts (topic_id, user_id, content) VALUES ($1, $2, $3) RETURNING id, created_at`
		if err := tx.QueryRow(ctx, query, post.TopicID, post.UserID, post.Content).Scan(&post.ID, &post.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert reply: %w", classifyPg(err))
		}
		tag, err := tx.Exec(ctx, `UPDATE topics SET updated_at = clock_timestamp() WHERE id = $1`, post.TopicID)
		if err != nil {
			return fmt.Errorf("failed to bump topic: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// --- User Functions ---

func (d *Database) UserExists(ctx context.Context, username, email string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1 OR email = $2)`
	err := d.pool.QueryRow(ctx, query, username, email).Scan(&exists)
	return exists, err
}

func (d *Database) CreateUser(ctx context.Context, user *User) error {
	query := `INSERT INTO users (username, email, password_hash, role) VALUES ($1, $2, $3, $4)
        RETURNING id, created_at`
	err := d.pool.QueryRow(ctx, query, user.Username, user.Email, user.PasswordHash, user.Role).
		Scan(&user.ID, &user.Created)
	if err != nil {
		return classifyPg(err)
	}
	return nil
}

func (d *Database) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	query := `SELECT id, username, email, password_hash, role, created_at FROM users WHERE email = $1`
	err := d.pool.QueryRow(ctx, query, email).Scan(&user.ID, &user.Username, &user.Email,
		&user.PasswordHash, &user.Role, &user.Created)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// --- Sighting Functions ---

func (d *Database) CreateSighting(ctx context.Context, s *Sighting) error {
	query := `INSERT INTO sightings (reporter_name, contact, report_type, subject_choice, what_sighted, occurred_at, location)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at`
	return d.pool.QueryRow(ctx, query, s.ReporterName, s.Contact, string(s.ReportType), s.SubjectChoice,
		s.WhatSighted, s.OccurredAt, s.Location).Scan(&s.ID, &s.CreatedAt)
}

func (d *Database) RecentSightings(ctx context.Context, limit int) ([]SightingSummary, error) {
	query := `SELECT id, reporter_name, report_type, subject_choice, location, occurred_at, created_at,
        substr(what_sighted, 1, $1)
        FROM sightings
        ORDER BY created_at DESC, id DESC
        LIMIT $2`
	rows, err := d.pool.Query(ctx, query, SnippetLength, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var reports []SightingSummary
	for rows.Next() {
		var s SightingSummary
		var reportType string
		if err := rows.Scan(&s.ID, &s.ReporterName, &reportType, &s.SubjectChoice, &s.Location,
			&s.OccurredAt, &s.CreatedAt, &s.Snippet); err != nil {
			return nil, err
		}
		s.ReportType = ReportType(reportType)
		reports = append(reports, s)
	}
	return reports, rows.Err()
}

// classifyPg maps constraint violations onto the package's sentinel errors.
func classifyPg(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505": // unique_violation
		return ErrDuplicateUser
	case "23503": // foreign_key_violation
		return ErrNotFound
	}
	return err
}
