package scrape

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/jobradar/jobradar/internal/jobs"
)

type stubAdapter struct {
	name    string
	items   []*jobs.Listing
	calls   int
	err     error
	fetched bool
}

func (s *stubAdapter) Name() string { return s.name }

func (s *stubAdapter) Fetch(_ context.Context) (*jobs.Listings, int, error) {
	s.fetched = true
	list := &jobs.Listings{}
	list.Append(s.items...)
	return list, s.calls, s.err
}

type stubBudget struct {
	remaining map[string]int
	err       error
}

func (b *stubBudget) Remaining(_ context.Context, src string) (int, error) {
	if b.err != nil {
		return 0, b.err
	}
	return b.remaining[src], nil
}

func TestRunMergesSources(t *testing.T) {
	first := &stubAdapter{
		name: "A",
		items: []*jobs.Listing{
			{JobID: "a_1", Title: "Junior Developer", Company: "Acme"},
			{JobID: "a_2", Title: "QA Analyst", Company: "Globex"},
		},
		calls: 3,
	}
	second := &stubAdapter{
		name: "B",
		items: []*jobs.Listing{
			{JobID: "b_1", Title: "Data Analyst", Company: "Initech"},
		},
		calls: 1,
	}

	scraper := New([]Source{{Adapter: first}, {Adapter: second}}, nil, zap.NewNop())

	list, counts, err := scraper.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if list.Len() != 3 {
		t.Fatalf("expected 3 merged listings, got %d", list.Len())
	}
	if counts["A"] != 3 || counts["B"] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}

func TestRunSourceFailureIsNotFatal(t *testing.T) {
	broken := &stubAdapter{name: "A", calls: 2, err: errors.New("boom")}
	healthy := &stubAdapter{
		name:  "B",
		items: []*jobs.Listing{{JobID: "b_1", Title: "Junior Developer", Company: "Acme"}},
		calls: 1,
	}

	scraper := New([]Source{{Adapter: broken}, {Adapter: healthy}}, nil, zap.NewNop())

	list, counts, err := scraper.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("one failing source must not abort the run: %v", err)
	}
	if list.Len() != 1 {
		t.Fatalf("expected the healthy source's listing, got %d", list.Len())
	}
	// Calls made before the failure still count toward usage.
	if counts["A"] != 2 {
		t.Fatalf("expected failed source calls recorded, got %d", counts["A"])
	}
}

func TestRunSkipsDuplicateIDs(t *testing.T) {
	first := &stubAdapter{
		name:  "A",
		items: []*jobs.Listing{{JobID: "shared", Title: "Junior Developer", Company: "Acme"}},
	}
	second := &stubAdapter{
		name:  "B",
		items: []*jobs.Listing{{JobID: "shared", Title: "Another Title", Company: "Other"}},
	}

	scraper := New([]Source{{Adapter: first}, {Adapter: second}}, nil, zap.NewNop())

	list, _, err := scraper.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if list.Len() != 1 {
		t.Fatalf("expected duplicate id dropped, got %d listings", list.Len())
	}
	if list.Items[0].Title != "Junior Developer" {
		t.Fatalf("expected first source to win, got %q", list.Items[0].Title)
	}
}

func TestRunDedupsByFingerprint(t *testing.T) {
	first := &stubAdapter{
		name:  "A",
		items: []*jobs.Listing{{JobID: "a_1", Title: "Junior Developer", Company: "Acme"}},
	}
	second := &stubAdapter{
		name:  "B",
		items: []*jobs.Listing{{JobID: "b_1", Title: "JUNIOR DEVELOPER", Company: "Acme, Inc"}},
	}

	scraper := New([]Source{{Adapter: first}, {Adapter: second}}, nil, zap.NewNop())

	list, _, err := scraper.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if list.Len() != 1 {
		t.Fatalf("expected cross-source duplicate removed, got %d", list.Len())
	}
	if list.Items[0].JobID != "a_1" {
		t.Fatalf("expected earlier source kept, got %s", list.Items[0].JobID)
	}
}

func TestRunSkipsEmptyIDs(t *testing.T) {
	adapter := &stubAdapter{
		name: "A",
		items: []*jobs.Listing{
			{JobID: "", Title: "Broken Record", Company: "Acme"},
			{JobID: "a_1", Title: "Junior Developer", Company: "Acme"},
		},
	}

	scraper := New([]Source{{Adapter: adapter}}, nil, zap.NewNop())

	list, _, err := scraper.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if list.Len() != 1 {
		t.Fatalf("expected empty-id listing dropped, got %d", list.Len())
	}
}

func TestRunSkipsMeteredSourceNearBudget(t *testing.T) {
	free := &stubAdapter{
		name:  "Free",
		items: []*jobs.Listing{{JobID: "f_1", Title: "Junior Developer", Company: "Acme"}},
	}
	metered := &stubAdapter{name: "Metered", calls: 1}

	// Remaining is below the safety margin.
	budget := &stubBudget{remaining: map[string]int{"Metered": 3, "Free": 1000}}

	scraper := New([]Source{{Adapter: free}, {Adapter: metered, Metered: true}}, budget, zap.NewNop())

	status := &Status{}
	list, counts, err := scraper.Run(context.Background(), status)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if metered.fetched {
		t.Fatalf("metered adapter must not run with %d calls remaining", 3)
	}
	if list.Len() != 1 {
		t.Fatalf("expected only the free source's listing, got %d", list.Len())
	}
	if counts["Metered"] != 0 {
		t.Fatalf("expected zero calls for skipped source, got %d", counts["Metered"])
	}
}

func TestRunAllowsMeteredSourceWithBudget(t *testing.T) {
	metered := &stubAdapter{
		name:  "Metered",
		items: []*jobs.Listing{{JobID: "m_1", Title: "Junior Developer", Company: "Acme"}},
		calls: 2,
	}

	budget := &stubBudget{remaining: map[string]int{"Metered": QuotaSafetyMargin}}

	scraper := New([]Source{{Adapter: metered, Metered: true}}, budget, zap.NewNop())

	list, counts, err := scraper.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !metered.fetched {
		t.Fatalf("metered adapter should run at exactly the safety margin")
	}
	if list.Len() != 1 || counts["Metered"] != 2 {
		t.Fatalf("unexpected result: len=%d counts=%v", list.Len(), counts)
	}
}

func TestRunBudgetErrorSkipsMeteredSource(t *testing.T) {
	metered := &stubAdapter{name: "Metered"}
	budget := &stubBudget{err: errors.New("db gone")}

	scraper := New([]Source{{Adapter: metered, Metered: true}}, budget, zap.NewNop())

	if _, _, err := scraper.Run(context.Background(), nil); err != nil {
		t.Fatalf("budget failure must not abort the run: %v", err)
	}
	if metered.fetched {
		t.Fatalf("metered adapter must not run when the budget check fails")
	}
}
