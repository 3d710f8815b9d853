// forum/models.go
package forum

import (
	"time"
)

type Category struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	TopicCount  int       `json:"topic_count" db:"topic_count"`
}

// Topic is a single thread with its category and author joined in.
type Topic struct {
	ID           int64     `json:"id" db:"id"`
	CategoryID   int64     `json:"category_id" db:"category_id"`
	CategoryName string    `json:"category_name" db:"category_name"`
	UserID       int64     `json:"user_id" db:"user_id"`
	Author       string    `json:"author" db:"author"`
	Title        string    `json:"title" db:"title"`
	Pinned       bool      `json:"pinned" db:"pinned"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// TopicSummary is one row of a topic listing.
type TopicSummary struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Pinned       bool      `json:"pinned"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	CategoryID   int64     `json:"category_id"`
	CategoryName string    `json:"category_name"`
	Author       string    `json:"author"`
	PostsTotal   int       `json:"posts_total"`
	Replies      int       `json:"replies"`
}

// setReplies derives the reply count from the post total. A topic whose
// opener is missing still reports zero replies.
func (t *TopicSummary) setReplies() {
	t.Replies = max(0, t.PostsTotal-1)
}

type Post struct {
	ID         int64     `json:"id" db:"id"`
	TopicID    int64     `json:"topic_id" db:"topic_id"`
	UserID     int64     `json:"user_id" db:"user_id"`
	Content    string    `json:"content" db:"content"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	Username   string    `json:"username" db:"username"`
	AuthorRole string    `json:"role" db:"role"`
}

// Stats are the totals shown in the home and categories sidebars.
type Stats struct {
	Members int `json:"members"`
	Topics  int `json:"topics"`
	Posts   int `json:"posts"`
}

type ReportType string

const (
	ReportGhost  ReportType = "ghost"
	ReportAnimal ReportType = "animal"
	ReportOther  ReportType = "other"
)

// Sighting is a free standing report, unrelated to the forum tables.
// Contact and SubjectChoice are nil when left blank.
type Sighting struct {
	ID            int64      `json:"id" db:"id"`
	ReporterName  string     `json:"reporter_name" db:"reporter_name"`
	Contact       *string    `json:"contact" db:"contact"`
	ReportType    ReportType `json:"report_type" db:"report_type"`
	SubjectChoice *string    `json:"subject_choice" db:"subject_choice"`
	WhatSighted   string     `json:"what_sighted" db:"what_sighted"`
	OccurredAt    string     `json:"occurred_at" db:"occurred_at"`
	Location      string     `json:"location" db:"location"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

// SightingSummary is a listing row with the description cut to an excerpt.
type SightingSummary struct {
	ID            int64      `json:"id"`
	ReporterName  string     `json:"reporter_name"`
	ReportType    ReportType `json:"report_type"`
	SubjectChoice *string    `json:"subject_choice"`
	Location      string     `json:"location"`
	OccurredAt    string     `json:"occurred_at"`
	CreatedAt     time.Time  `json:"created_at"`
	Snippet       string     `json:"snippet"`
}
