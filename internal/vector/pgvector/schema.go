// Package pgvector stores issues and comments as columnar rows with a
// pgvector embedding column, and implements cosine similarity search,
// hybrid (vector+lexical) search, filter-DSL translation, and the
// aggregate/analytics queries the rest of the system needs.
package pgvector

import (
	"database/sql/driver"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	pgvec "github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// stringList is a []string column stored as a JSON array, so labels,
// components, and linked-issue keys don't need a join table.
type stringList []string

func (s stringList) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *stringList) Scan(src any) error {
	if src == nil {
		*s = nil
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("stringList: unsupported scan type %T", src)
	}
	if len(raw) == 0 {
		*s = nil
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*s = out
	return nil
}

// issueRow is the GORM model for the issues table.
type issueRow struct {
	IssueKey           string     `gorm:"primaryKey;column:issue_key"`
	ProjectKey         string     `gorm:"column:project_key;index"`
	Summary            string     `gorm:"column:summary"`
	DescriptionPreview string     `gorm:"column:description_preview"`
	IssueType          string     `gorm:"column:issue_type;index"`
	Status             string     `gorm:"column:status"`
	StatusCategory     string     `gorm:"column:status_category;index"`
	Priority           string     `gorm:"column:priority;index"`
	Assignee           string     `gorm:"column:assignee;index"`
	Reporter           string     `gorm:"column:reporter"`
	Labels             stringList `gorm:"column:labels"`
	Components         stringList `gorm:"column:components"`
	CreatedAt          time.Time  `gorm:"column:created_at;index"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;index"`
	ResolvedAt         *time.Time `gorm:"column:resolved_at"`
	ParentKey          string     `gorm:"column:parent_key"`
	LinkedIssues       stringList `gorm:"column:linked_issues"`
	Embedding          pgvec.Vector `gorm:"column:embedding"`
	ContentHash        string     `gorm:"column:content_hash"`
	EmbeddingVersion   string     `gorm:"column:embedding_version"`
	IndexedAt          time.Time  `gorm:"column:indexed_at"`
}

func (issueRow) TableName() string { return "issues" }

// commentRow is the GORM model for the comments table.
type commentRow struct {
	CommentID        string       `gorm:"primaryKey;column:comment_id"`
	IssueKey         string       `gorm:"column:issue_key;index"`
	ProjectKey       string       `gorm:"column:project_key;index"`
	IssueType        string       `gorm:"column:issue_type"`
	IssueStatus      string       `gorm:"column:issue_status"`
	BodyPreview      string       `gorm:"column:body_preview"`
	Author           string       `gorm:"column:author"`
	CreatedAt        time.Time    `gorm:"column:created_at;index"`
	Embedding        pgvec.Vector `gorm:"column:embedding"`
	ContentHash      string       `gorm:"column:content_hash"`
	EmbeddingVersion string       `gorm:"column:embedding_version"`
	IndexedAt        time.Time    `gorm:"column:indexed_at"`
}

func (commentRow) TableName() string { return "comments" }

// Migrate creates the issues/comments tables and the pgvector extension if
// they don't already exist. Vector column dimensionality is fixed at
// construction time (it matches the configured embedding provider), so a
// dimension change requires a fresh table — matching the spec's compact/
// rebuild story rather than an in-place ALTER.
func Migrate(db *gorm.DB, dims int) error {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS vector`).Error; err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}

	if err := db.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS issues (
			issue_key            TEXT PRIMARY KEY,
			project_key          TEXT NOT NULL,
			summary              TEXT NOT NULL,
			description_preview  TEXT NOT NULL,
			issue_type           TEXT,
			status               TEXT,
			status_category      TEXT,
			priority             TEXT,
			assignee             TEXT,
			reporter             TEXT,
			labels               JSONB,
			components           JSONB,
			created_at           TIMESTAMPTZ,
			updated_at           TIMESTAMPTZ,
			resolved_at          TIMESTAMPTZ,
			parent_key           TEXT,
			linked_issues        JSONB,
			embedding            vector(%d),
			content_hash         TEXT,
			embedding_version    TEXT,
			indexed_at           TIMESTAMPTZ
		)`, dims)).Error; err != nil {
		return fmt.Errorf("create issues table: %w", err)
	}

	if err := db.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS comments (
			comment_id        TEXT PRIMARY KEY,
			issue_key          TEXT NOT NULL,
			project_key        TEXT NOT NULL,
			issue_type         TEXT,
			issue_status       TEXT,
			body_preview       TEXT NOT NULL,
			author             TEXT,
			created_at         TIMESTAMPTZ,
			embedding          vector(%d),
			content_hash       TEXT,
			embedding_version  TEXT,
			indexed_at         TIMESTAMPTZ
		)`, dims)).Error; err != nil {
		return fmt.Errorf("create comments table: %w", err)
	}

	stmts := []string{
		`CREATE INDEX IF NOT EXISTS idx_issues_project ON issues (project_key)`,
		`CREATE INDEX IF NOT EXISTS idx_issues_updated ON issues (updated_at)`,
		`CREATE INDEX IF NOT EXISTS idx_comments_issue ON comments (issue_key)`,
		`CREATE INDEX IF NOT EXISTS idx_comments_project ON comments (project_key)`,
	}
	for _, s := range stmts {
		if err := db.Exec(s).Error; err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}

	return nil
}
