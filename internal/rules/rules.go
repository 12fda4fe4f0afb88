// Package rules holds the keyword tables used to pre-filter job titles
// before a listing is accepted by an adapter. The matching is a blunt
// case-insensitive substring heuristic: dropping a real entry-level role
// whose title happens to contain a filtered substring is an accepted
// limitation, not a bug.
package rules

import "strings"

// Table is the configurable rule set shared by all adapters. The zero
// value matches everything; use Default for the stock keyword lists.
type Table struct {
	// Exclude rejects seniority and non-tech trade/clinical titles outright.
	Exclude []string `mapstructure:"exclude"`
	// Tech marks a title as technology-related. Used by boards that mix
	// every profession with no query-side filtering.
	Tech []string `mapstructure:"tech"`
	// Entry marks a title as entry-level / junior.
	Entry []string `mapstructure:"entry"`
}

// Default returns the stock rule table.
func Default() *Table {
	return &Table{
		Exclude: []string{
			"senior", "sr.", " sr ", "staff ", "principal", "director", "vp ", "vice president",
			"manager", "head of", "lead ", " lead", "architect", "cto", "cso", "chief",
			"surgeon", "physician", "nurse", "dental", "attorney", "lawyer",
			"account executive", "truck driver", "cdl", "warehouse", "hvac",
			"plumber", "electrician", "carpenter", "welder", "forklift",
		},
		Tech: []string{
			"software", "engineer", "developer", "data", "analyst",
			"cloud", "devops", "systems", "python", "java", "backend",
			"frontend", "full stack", "machine learning", "ai ", "ml ",
			"infrastructure", "platform", "site reliability", "sre",
			"quality", "qa", "test", "automation", "it ", "technology",
		},
		Entry: []string{
			"junior", "entry", "associate", "early career", "new grad", "graduate",
			"intern", "apprentice", "i ", " i)", "level 1", "level i", "jr.",
			" 1 ", "entry-level", "recent grad",
		},
	}
}

// IsRelevant reports whether the title passes the exclusion list.
func (t *Table) IsRelevant(title string) bool {
	return !containsAny(title, t.Exclude)
}

// IsTech reports whether the title contains a technology keyword.
func (t *Table) IsTech(title string) bool {
	return containsAny(title, t.Tech)
}

// IsEntryLevel reports whether the title suggests an entry-level role.
func (t *Table) IsEntryLevel(title string) bool {
	return containsAny(title, t.Entry)
}

func containsAny(title string, keywords []string) bool {
	lower := strings.ToLower(title)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
