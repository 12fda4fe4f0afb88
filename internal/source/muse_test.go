package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/jobradar/jobradar/internal/rules"
)

func musePage(t *testing.T, w http.ResponseWriter, count, offset int) {
	t.Helper()

	resp := museResponse{}
	for i := 0; i < count; i++ {
		job := museJob{
			ID:              offset + i,
			Name:            fmt.Sprintf("Junior Developer %d", offset+i),
			PublicationDate: "2026-08-01",
			Contents:        "<p>Write code</p>",
		}
		job.Company.Name = "Acme"
		job.Locations = append(job.Locations, struct {
			Name string `json:"name"`
		}{Name: "Remote"})
		resp.Results = append(resp.Results, job)
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		t.Fatalf("encoding page: %v", err)
	}
}

func TestMuseFetchStopsOnShortPage(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		switch r.URL.Query().Get("page") {
		case "0":
			musePage(t, w, musePageSize, 0)
		case "1":
			musePage(t, w, 2, musePageSize)
		default:
			t.Errorf("unexpected page requested: %s", r.URL.Query().Get("page"))
		}
	}))
	defer server.Close()

	params := MuseParams{
		Categories: []string{"Software Engineer"},
		Levels:     []string{"entry level"},
		MaxPages:   5,
	}

	muse := NewMuse(NewClient(zap.NewNop()), rules.Default(), params, zap.NewNop())
	muse.BaseURL = server.URL

	list, calls, err := muse.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if requests != 2 {
		t.Fatalf("expected 2 requests (full page then short page), got %d", requests)
	}
	if calls != 2 {
		t.Fatalf("expected 2 reported calls, got %d", calls)
	}
	if list.Len() != musePageSize+2 {
		t.Fatalf("expected %d listings, got %d", musePageSize+2, list.Len())
	}

	first := list.Items[0]
	if first.JobID != "muse_0" {
		t.Fatalf("unexpected job id: %s", first.JobID)
	}
	if first.Source != museName {
		t.Fatalf("unexpected source: %s", first.Source)
	}
	if first.Description != "Write code" {
		t.Fatalf("expected stripped description, got %q", first.Description)
	}
	if first.MatchScore != -1 {
		t.Fatalf("expected unscored listing, got score %d", first.MatchScore)
	}
}

func TestMuseFetchFiltersExcludedTitles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp := museResponse{}
		for i, name := range []string{"Junior Developer", "Senior Software Engineer", "Engineering Manager"} {
			job := museJob{ID: i, Name: name}
			job.Company.Name = "Acme"
			resp.Results = append(resp.Results, job)
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	params := MuseParams{
		Categories: []string{"Software Engineer"},
		Levels:     []string{"entry level"},
		MaxPages:   1,
	}

	muse := NewMuse(NewClient(zap.NewNop()), rules.Default(), params, zap.NewNop())
	muse.BaseURL = server.URL

	list, _, err := muse.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if list.Len() != 1 {
		t.Fatalf("expected 1 listing after filtering, got %d", list.Len())
	}
	if list.Items[0].Title != "Junior Developer" {
		t.Fatalf("wrong listing survived: %s", list.Items[0].Title)
	}
}

func TestMuseFetchDedupsWithinSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// Same job on every page and combination.
		resp := museResponse{}
		job := museJob{ID: 42, Name: "Junior Developer"}
		job.Company.Name = "Acme"
		resp.Results = append(resp.Results, job)
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	params := MuseParams{
		Categories: []string{"Software Engineer", "IT"},
		Levels:     []string{"entry level"},
		MaxPages:   2,
	}

	muse := NewMuse(NewClient(zap.NewNop()), rules.Default(), params, zap.NewNop())
	muse.BaseURL = server.URL

	list, _, err := muse.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if list.Len() != 1 {
		t.Fatalf("expected the repeated job once, got %d", list.Len())
	}
}

func TestMuseFetchSkipsCategoryOnServerError(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	params := MuseParams{
		Categories: []string{"Software Engineer", "IT"},
		Levels:     []string{"entry level"},
		MaxPages:   3,
	}

	muse := NewMuse(NewClient(zap.NewNop()), rules.Default(), params, zap.NewNop())
	muse.BaseURL = server.URL

	list, calls, err := muse.Fetch(context.Background())
	if err != nil {
		t.Fatalf("source errors must not be fatal: %v", err)
	}
	if list.Len() != 0 {
		t.Fatalf("expected no listings, got %d", list.Len())
	}
	// One failing request per category/level combination, no page retries.
	if requests != 2 || calls != 2 {
		t.Fatalf("expected 2 attempts, got requests=%d calls=%d", requests, calls)
	}
}
