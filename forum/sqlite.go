package forum

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// Timestamps are stored with millisecond precision so ordering by recency
// holds for writes within the same second.
const sqliteNow = `(strftime('%Y-%m-%d %H:%M:%f', 'now'))`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role TEXT NOT NULL DEFAULT 'member',
	created_at DATETIME NOT NULL DEFAULT ` + sqliteNow + `
);

CREATE TABLE IF NOT EXISTS categories (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT ` + sqliteNow + `
);

CREATE TABLE IF NOT EXISTS topics (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	category_id INTEGER NOT NULL,
	user_id INTEGER NOT NULL,
	title TEXT NOT NULL,
	pinned BOOLEAN NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT ` + sqliteNow + `,
	updated_at DATETIME NOT NULL DEFAULT ` + sqliteNow + `,
	FOREIGN KEY (category_id) REFERENCES categories(id),
	FOREIGN KEY (user_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS posts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	topic_id INTEGER NOT NULL,
	user_id INTEGER NOT NULL,
	content TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT ` + sqliteNow + `,
	FOREIGN KEY (topic_id) REFERENCES topics(id),
	FOREIGN KEY (user_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS sightings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	reporter_name TEXT NOT NULL,
	contact TEXT,
	report_type TEXT NOT NULL,
	subject_choice TEXT,
	what_sighted TEXT NOT NULL,
	occurred_at TEXT NOT NULL,
	location TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT ` + sqliteNow + `
);

CREATE INDEX IF NOT EXISTS idx_topics_category ON topics(category_id);
CREATE INDEX IF NOT EXISTS idx_posts_topic_created ON posts(topic_id, created_at);
`

const sqliteTopicSummaryColumns = `
	t.id, t.title, t.pinned, t.created_at, t.updated_at,
	c.id, c.name, u.username,
	(SELECT COUNT(*) FROM posts p WHERE p.topic_id = t.id)
FROM topics t
JOIN categories c ON c.id = t.category_id
JOIN users u ON u.id = t.user_id`

// SQLiteDatabase is the SQLite backed Store. WAL and foreign keys are turned
// on for every connection through the DSN.
type SQLiteDatabase struct {
	db *sql.DB
}

func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	dsn := path + "?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	return &SQLiteDatabase{db: db}, nil
}

func (s *SQLiteDatabase) Close() {
	s.db.Close()
}

func (s *SQLiteDatabase) CreateTables(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("error creating tables: %w", err)
	}
	return s.seedCategories(ctx)
}

func (s *SQLiteDatabase) seedCategories(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&count); err != nil {
		return fmt.Errorf("error counting categories: %w", err)
	}
	if count > 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, c := range seedCategories {
		if _, err := tx.ExecContext(ctx, `INSERT INTO categories (name, description) VALUES (?, ?)`, c.Name, c.Description); err != nil {
			return fmt.Errorf("error inserting category '%s': %w", c.Name, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteDatabase) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	query := `SELECT
		(SELECT COUNT(*) FROM users),
		(SELECT COUNT(*) FROM topics),
		(SELECT COUNT(*) FROM posts)`
	err := s.db.QueryRowContext(ctx, query).Scan(&st.Members, &st.Topics, &st.Posts)
	return st, err
}

func (s *SQLiteDatabase) ListCategories(ctx context.Context) ([]Category, error) {
	query := `SELECT c.id, c.name, c.description, c.created_at,
		(SELECT COUNT(*) FROM topics t WHERE t.category_id = c.id)
		FROM categories c
		ORDER BY c.name ASC`
	rows, err := s.db.QueryContext(ctx, query)
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

func (s *SQLiteDatabase) GetCategory(ctx context.Context, id int64) (*Category, error) {
	var c Category
	query := `SELECT id, name, description, created_at FROM categories WHERE id = ?`
	err := s.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *SQLiteDatabase) LatestTopics(ctx context.Context, limit int) ([]TopicSummary, error) {
	query := `SELECT` + sqliteTopicSummaryColumns + `
		ORDER BY t.pinned DESC, t.updated_at DESC, t.id DESC
		LIMIT ?`
	return s.topicSummaries(ctx, query, limit)
}

func (s *SQLiteDatabase) TopicsByCategory(ctx context.Context, categoryID int64) ([]TopicSummary, error) {
	query := `SELECT` + sqliteTopicSummaryColumns + `
		WHERE t.category_id = ?
		ORDER BY t.pinned DESC, t.updated_at DESC, t.id DESC`
	return s.topicSummaries(ctx, query, categoryID)
}

func (s *SQLiteDatabase) topicSummaries(ctx context.Context, query string, args ...any) ([]TopicSummary, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
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

func (s *SQLiteDatabase) GetTopic(ctx context.Context, id int64) (*Topic, error) {
	var t Topic
	query := `SELECT t.id, t.category_id, c.name, t.user_id, u.username, t.title, t.pinned, t.created_at, t.updated_at
		FROM topics t
		JOIN categories c ON c.id = t.category_id
		JOIN users u ON u.id = t.user_id
		WHERE t.id = ?`
	err := s.db.QueryRowContext(ctx, query, id).Scan(&t.ID, &t.CategoryID, &t.CategoryName, &t.UserID,
		&t.Author, &t.Title, &t.Pinned, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *SQLiteDatabase) CreateTopic(ctx context.Context, topic *Topic, opener *Post) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `INSERT INTO topics (category_id, user_id, title, pinned) VALUES (?, ?, ?, ?)`,
		topic.CategoryID, topic.UserID, topic.Title, topic.Pinned)
	if err != nil {
		return fmt.Errorf("failed to insert topic: %w", classifySQLite(err))
	}
	if topic.ID, err = res.LastInsertId(); err != nil {
		return err
	}

	opener.TopicID = topic.ID
	res, err = tx.ExecContext(ctx, `INSERT INTO posts (topic_id, user_id, content) VALUES (?, ?, ?)`,
		opener.TopicID, opener.UserID, opener.Content)
	if err != nil {
		return fmt.Errorf("failed to insert opening post: %w", classifySQLite(err))
	}
	if opener.ID, err = res.LastInsertId(); err != nil {
		return err
	}

	err = tx.QueryRowContext(ctx, `SELECT created_at, updated_at FROM topics WHERE id = ?`, topic.ID).
		Scan(&topic.CreatedAt, &topic.UpdatedAt)
	if err != nil {
		return err
	}
	opener.CreatedAt = topic.CreatedAt
	return tx.Commit()
}

func (s *SQLiteDatabase) PostsByTopic(ctx context.Context, topicID int64) ([]Post, error) {
	query := `SELECT p.id, p.topic_id, p.user_id, p.content, p.created_at, u.username, u.role
		FROM posts p
		JOIN users u ON u.id = p.user_id
		WHERE p.topic_id = ?
		ORDER BY p.created_at ASC, p.id ASC`
	rows, err := s.db.QueryContext(ctx, query, topicID)
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

func (s *SQLiteDatabase) CreateReply(ctx context.Context, post *Post) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `INSERT INTO posts (topic_id, user_id, content) VALUES (?, ?, ?)`,
		post.TopicID, post.UserID, post.Content)
	if err != nil {
		return fmt.Errorf("failed to insert reply: %w", classifySQLite(err))
	}
	if post.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE topics SET updated_at = `+sqliteNow+` WHERE id = ?`, post.TopicID); err != nil {
		return fmt.Errorf("failed to bump topic: %w", err)
	}
	if err := tx.QueryRowContext(ctx, `SELECT created_at FROM posts WHERE id = ?`, post.ID).Scan(&post.CreatedAt); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteDatabase) UserExists(ctx context.Context, username, email string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE username = ? OR email = ?)`
	err := s.db.QueryRowContext(ctx, query, username, email).Scan(&exists)
	return exists, err
}

func (s *SQLiteDatabase) CreateUser(ctx context.Context, user *User) error {
	res, err := s.db.ExecContext(ctx, `INSERT INTO users (username, email, password_hash, role) VALUES (?, ?, ?, ?)`,
		user.Username, user.Email, user.PasswordHash, user.Role)
	if err != nil {
		return classifySQLite(err)
	}
	if user.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	return s.db.QueryRowContext(ctx, `SELECT created_at FROM users WHERE id = ?`, user.ID).Scan(&user.Created)
}

func (s *SQLiteDatabase) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	query := `SELECT id, username, email, password_hash, role, created_at FROM users WHERE email = ?`
	err := s.db.QueryRowContext(ctx, query, email).Scan(&user.ID, &user.Username, &user.Email,
		&user.PasswordHash, &user.Role, &user.Created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *SQLiteDatabase) CreateSighting(ctx context.Context, sg *Sighting) error {
	query := `INSERT INTO sightings (reporter_name, contact, report_type, subject_choice, what_sighted, occurred_at, location)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, query, sg.ReporterName, sg.Contact, string(sg.ReportType), sg.SubjectChoice,
		sg.WhatSighted, sg.OccurredAt, sg.Location)
	if err != nil {
		return err
	}
	if sg.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	return s.db.QueryRowContext(ctx, `SELECT created_at FROM sightings WHERE id = ?`, sg.ID).Scan(&sg.CreatedAt)
}

func (s *SQLiteDatabase) RecentSightings(ctx context.Context, limit int) ([]SightingSummary, error) {
	query := `SELECT id, reporter_name, report_type, subject_choice, location, occurred_at, created_at,
		substr(what_sighted, 1, ?)
		FROM sightings
		ORDER BY created_at DESC, id DESC
		LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, SnippetLength, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var reports []SightingSummary
	for rows.Next() {
		var sg SightingSummary
		var reportType string
		if err := rows.Scan(&sg.ID, &sg.ReporterName, &reportType, &sg.SubjectChoice, &sg.Location,
			&sg.OccurredAt, &sg.CreatedAt, &sg.Snippet); err != nil {
			return nil, err
		}
		sg.ReportType = ReportType(reportType)
		reports = append(reports, sg)
	}
	return reports, rows.Err()
}

// classifySQLite maps constraint failures onto the package's sentinel errors.
func classifySQLite(err error) error {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return err
	}
	switch sqliteErr.ExtendedCode {
	case sqlite3.ErrConstraintUnique:
		return ErrDuplicateUser
	case sqlite3.ErrConstraintForeignKey:
		return ErrNotFound
	}
	return err
}
