package forum

import (
	"context"
	"errors"
)

const (
	LatestTopicsLimit = 12
	RecentReportLimit = 50
	SnippetLength     = 180
	DefaultRole       = "member"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicateUser = errors.New("username or email already in use")
)

// seedCategories are inserted once, when the categories table is empty.
var seedCategories = []Category{
	{Name: "General", Description: "Introductions, announcements, and community updates."},
	{Name: "Build Logs", Description: "Project diaries, photos, and progress updates."},
	{Name: "Help & Support", Description: "Ask questions, share solutions, and report issues."},
	{Name: "Tips & Guides", Description: "Write-ups, checklists, and best practices."},
}

type UserStore interface {
	UserExists(ctx context.Context, username, email string) (bool, error)
	// CreateUser fills in ID and CreatedAt. A unique constraint hit is
	// reported as ErrDuplicateUser.
	CreateUser(ctx context.Context, user *User) error
	GetUserByEmail(ctx context.Context, email string) (*User, error)
}

type ForumStore interface {
	Stats(ctx context.Context) (Stats, error)
	ListCategories(ctx context.Context) ([]Category, error)
	GetCategory(ctx context.Context, id int64) (*Category, error)
	LatestTopics(ctx context.Context, limit int) ([]TopicSummary, error)
	TopicsByCategory(ctx context.Context, categoryID int64) ([]TopicSummary, error)
	GetTopic(ctx context.Context, id int64) (*Topic, error)
	PostsByTopic(ctx context.Context, topicID int64) ([]Post, error)
	// CreateTopic inserts the topic and its opening post in one transaction.
	CreateTopic(ctx context.Context, topic *Topic, opener *Post) error
	// CreateReply inserts the post and bumps the topic's updated_at.
	CreateReply(ctx context.Context, post *Post) error
}

type SightingStore interface {
	CreateSighting(ctx context.Context, s *Sighting) error
	RecentSightings(ctx context.Context, limit int) ([]SightingSummary, error)
}

// Store is everything the handlers need from a database backend.
type Store interface {
	UserStore
	ForumStore
	SightingStore
	CreateTables(ctx context.Context) error
	Close()
}
