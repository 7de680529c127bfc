// Package models holds the plain data shapes shared across jiraindex's
// components: issues, comments, and the query/result records that flow
// between the sync engine, vector store, self-query parser, and insights
// engine.
package models

import (
	"strings"
	"time"
)

// StatusCategory is the three-valued simplification of a free-form Jira
// status name.
type StatusCategory string

const (
	StatusToDo       StatusCategory = "To Do"
	StatusInProgress StatusCategory = "In Progress"
	StatusDone       StatusCategory = "Done"
)

// Issue is the remote-tracker issue shape as delivered by an IssueSource,
// before any embedding or text-prep has been applied. Field names mirror
// the JQL-facing fields an IssueSource yields.
type Issue struct {
	Key         string
	ProjectKey  string
	Summary     string
	Description string
	IssueType   string
	Status      string
	Priority    string
	Assignee    string
	Reporter    string
	Labels      []string
	Components  []string
	Created     time.Time
	Updated     time.Time
	ResolvedAt  *time.Time
	ParentKey   string
	LinkedIssues []string
	Comments    []Comment
}

// Comment is a single comment on an Issue as delivered by an IssueSource.
type Comment struct {
	ID      string
	IssueKey string
	Author  string
	Body    string
	Created time.Time
}

// IssueEmbedding is the persisted, embedded record for an issue: the
// content-hashed, vector-bearing row stored in the issues table.
type IssueEmbedding struct {
	IssueID            string
	ProjectKey         string
	Vector             []float32
	Summary            string
	DescriptionPreview string
	IssueType          string
	Status             string
	StatusCategory     StatusCategory
	Priority           string
	Assignee           string
	Reporter           string
	Labels             []string
	Components         []string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	ResolvedAt         *time.Time
	ParentKey          string
	LinkedIssues       []string
	ContentHash        string
	EmbeddingVersion   string
	IndexedAt          time.Time
}

// CommentEmbedding is the persisted, embedded record for a comment.
// Denormalizes a few parent-issue fields for filter efficiency.
type CommentEmbedding struct {
	CommentID        string
	IssueID          string
	ProjectKey       string
	IssueType        string
	IssueStatus      string
	Vector           []float32
	BodyPreview      string
	Author           string
	CreatedAt        time.Time
	ContentHash      string
	EmbeddingVersion string
	IndexedAt        time.Time
}

// DeriveStatusCategory maps a free-form status name to the three-valued
// simplification, following the same substring heuristic as the sync
// engine's issue conversion.
func DeriveStatusCategory(status string) StatusCategory {
	lower := strings.ToLower(status)
	for _, term := range []string{"done", "closed", "resolved", "complete"} {
		if strings.Contains(lower, term) {
			return StatusDone
		}
	}
	for _, term := range []string{"progress", "review", "testing", "active"} {
		if strings.Contains(lower, term) {
			return StatusInProgress
		}
	}
	return StatusToDo
}
