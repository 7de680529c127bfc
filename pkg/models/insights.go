package models

import "time"

// ClusterResult is one K-means cluster over issue embeddings.
type ClusterResult struct {
	ClusterID            int
	Size                 int
	RepresentativeIssues []string
	CommonLabels         []string
	CommonComponents     []string
	ThemeKeywords        []string
	Centroid             []float32
}

// TrendAnalysis summarizes one time window of issue activity.
type TrendAnalysis struct {
	PeriodStart    time.Time
	PeriodEnd      time.Time
	TotalCreated   int
	TotalResolved  int
	NetChange      int
	ByType         map[string]int
	ByPriority     map[string]int
	TrendingLabels []LabelCount
}

// LabelCount pairs a label with its occurrence count, preserving descending
// frequency order (a map alone would lose that order).
type LabelCount struct {
	Label string
	Count int
}

// BugPattern is a group of similar bugs discovered via pairwise cosine
// similarity over their embeddings.
type BugPattern struct {
	PatternID          int
	BugCount           int
	Bugs               []string
	CommonSummaryTerms []string
	Statuses           map[string]int
}

// VelocityWeek is one week's created/resolved/net counts.
type VelocityWeek struct {
	Week       int
	WeekEnding time.Time
	Created    int
	Resolved   int
	Net        int
}

// VelocityMetrics summarizes a project's throughput over recent weeks.
type VelocityMetrics struct {
	ProjectKey      string
	WeeksAnalyzed   int
	WeeklyMetrics   []VelocityWeek
	AvgCreatedPerWeek  float64
	AvgResolvedPerWeek float64
	AvgNetChange       float64
	BacklogTrend       string // "growing" or "shrinking"
}
