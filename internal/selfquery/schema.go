// Package selfquery turns a natural-language search query into a
// semantic-search portion plus structured filters, using an LLM guided by
// a fixed field schema, with a deterministic relative-date resolver and a
// short-TTL result cache.
package selfquery

import "strings"

// fieldInfo describes one filterable Jira field for the LLM prompt: what
// it means, which filter-DSL operators apply to it, and (when bounded) its
// enumerated values.
type fieldInfo struct {
	Description string
	Operators   []string
	Enum        []string
}

// jiraFieldSchema is the fixed set of fields the parser may emit filters
// for. Order matters only for prompt readability; field lookups elsewhere
// don't depend on iteration order.
var jiraFieldSchema = []struct {
	Name string
	fieldInfo
}{
	{"project_key", fieldInfo{
		Description: "Jira project key (e.g., 'PROJ', 'ENG', 'PLATFORM')",
		Operators:   []string{"$eq", "$in"},
	}},
	{"issue_type", fieldInfo{
		Description: "Type of issue: Bug, Story, Task, Epic, Sub-task",
		Operators:   []string{"$eq", "$in"},
		Enum:        []string{"Bug", "Story", "Task", "Epic", "Sub-task"},
	}},
	{"status", fieldInfo{
		Description: "Issue status (e.g., 'Open', 'In Progress', 'Done')",
		Operators:   []string{"$eq", "$in", "$ne"},
	}},
	{"status_category", fieldInfo{
		Description: "Status category: 'To Do', 'In Progress', 'Done'",
		Operators:   []string{"$eq", "$ne"},
		Enum:        []string{"To Do", "In Progress", "Done"},
	}},
	{"priority", fieldInfo{
		Description: "Issue priority (e.g., 'Critical', 'High', 'Medium', 'Low')",
		Operators:   []string{"$eq", "$in"},
		Enum:        []string{"Critical", "High", "Medium", "Low", "Lowest"},
	}},
	{"assignee", fieldInfo{
		Description: "Person assigned to the issue (username or display name)",
		Operators:   []string{"$eq", "$in"},
	}},
	{"reporter", fieldInfo{
		Description: "Person who created the issue",
		Operators:   []string{"$eq"},
	}},
	{"labels", fieldInfo{
		Description: "Labels attached to the issue",
		Operators:   []string{"$contains"},
	}},
	{"components", fieldInfo{
		Description: "Components the issue belongs to",
		Operators:   []string{"$contains"},
	}},
	{"created_at", fieldInfo{
		Description: "When the issue was created",
		Operators:   []string{"$gte", "$lte", "$gt", "$lt"},
	}},
	{"updated_at", fieldInfo{
		Description: "When the issue was last updated",
		Operators:   []string{"$gte", "$lte", "$gt", "$lt"},
	}},
}

// formatSchemaForPrompt renders the field schema as the bullet list the
// system prompt embeds.
func formatSchemaForPrompt() string {
	var b strings.Builder
	for _, f := range jiraFieldSchema {
		ops := strings.Join(f.Operators, ", ")
		if len(f.Enum) > 0 {
			b.WriteString("- " + f.Name + ": " + f.Description + ". Ops: " + ops + ". Values: " + strings.Join(f.Enum, ", ") + "\n")
		} else {
			b.WriteString("- " + f.Name + ": " + f.Description + ". Ops: " + ops + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
