package jobs

import (
	"regexp"
	"strings"
)

// Work type values assigned by adapter heuristics and corrected by the AI scorer.
const (
	WorkTypeRemote = "Remote"
	WorkTypeHybrid = "Hybrid"
	WorkTypeOnsite = "Onsite"
)

// ScoreUnscored marks a listing that has not been scored yet or whose
// scoring failed. The rescore command picks these up later.
const ScoreUnscored = -1

// DescriptionLimit caps description length to bound AI prompt size.
const DescriptionLimit = 2500

// Listing is the common record shape every source adapter produces.
type Listing struct {
	JobID         string   `json:"job_id"`
	Title         string   `json:"title"`
	Company       string   `json:"company"`
	Location      string   `json:"location"`
	Lat           *float64 `json:"lat,omitempty"`
	Lng           *float64 `json:"lng,omitempty"`
	WorkType      string   `json:"work_type"`
	SalaryMin     *int     `json:"salary_min,omitempty"`
	SalaryMax     *int     `json:"salary_max,omitempty"`
	SalaryDisplay string   `json:"salary_display"`
	Description   string   `json:"description"`
	ApplyURL      string   `json:"apply_url"`
	CompanyURL    string   `json:"company_url"`
	Source        string   `json:"source"`
	DatePosted    string   `json:"date_posted"`
	MatchScore    int      `json:"match_score"`
	MatchReasons  string   `json:"match_reasons"`
}

// Listings is an ordered collection of listings.
type Listings struct {
	Items []*Listing
}

func (l *Listings) Len() int {
	return len(l.Items)
}

func (l *Listings) Append(items ...*Listing) {
	l.Items = append(l.Items, items...)
}

// IDs returns the job ids in collection order.
func (l *Listings) IDs() []string {
	ids := make([]string, 0, len(l.Items))
	for _, item := range l.Items {
		ids = append(ids, item.JobID)
	}
	return ids
}

// FilterNew returns the listings whose job id is not in existing.
func (l *Listings) FilterNew(existing map[string]struct{}) *Listings {
	fresh := &Listings{}
	for _, item := range l.Items {
		if _, ok := existing[item.JobID]; ok {
			continue
		}
		fresh.Append(item)
	}
	return fresh
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]`)

// Fingerprint returns the normalized title+company key used to catch the
// same posting re-listed under different source-specific ids.
func Fingerprint(title, company string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(title+company), "")
}

// DedupByFingerprint removes cross-source duplicates in place, keeping the
// first occurrence. Returns the number of removed listings.
func (l *Listings) DedupByFingerprint() int {
	seen := make(map[string]struct{}, len(l.Items))
	kept := l.Items[:0]
	removed := 0
	for _, item := range l.Items {
		key := Fingerprint(item.Title, item.Company)
		if _, ok := seen[key]; ok {
			removed++
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, item)
	}
	l.Items = kept
	return removed
}
