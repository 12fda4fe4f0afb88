package jobs

import "testing"

func TestFingerprintNormalizes(t *testing.T) {
	cases := []struct {
		name    string
		title   string
		company string
		want    string
	}{
		{"plain", "Software Engineer", "Acme", "softwareengineeracme"},
		{"punctuation and case", "Software Engineer - Backend!", "ACME, Inc.", "softwareengineerbackendacmeinc"},
		{"unicode stripped", "Développeur", "Acmé", "dveloppeuracm"},
		{"empty", "", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Fingerprint(tc.title, tc.company); got != tc.want {
				t.Fatalf("Fingerprint(%q, %q) = %q, want %q", tc.title, tc.company, got, tc.want)
			}
		})
	}
}

func TestDedupByFingerprintKeepsFirst(t *testing.T) {
	list := &Listings{}
	list.Append(
		&Listing{JobID: "muse_1", Title: "Junior Developer", Company: "Acme", Source: "The Muse"},
		&Listing{JobID: "rem_2", Title: "QA Analyst", Company: "Globex", Source: "Remotive"},
		&Listing{JobID: "gh_3", Title: "JUNIOR DEVELOPER", Company: "acme!", Source: "Greenhouse"},
	)

	removed := list.DedupByFingerprint()

	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if list.Len() != 2 {
		t.Fatalf("expected 2 kept, got %d", list.Len())
	}
	if list.Items[0].JobID != "muse_1" {
		t.Fatalf("expected first occurrence kept, got %s", list.Items[0].JobID)
	}
	if list.Items[1].JobID != "rem_2" {
		t.Fatalf("expected order preserved, got %s", list.Items[1].JobID)
	}
}

func TestDedupByFingerprintIdempotent(t *testing.T) {
	list := &Listings{}
	list.Append(
		&Listing{JobID: "a", Title: "Data Analyst", Company: "Acme"},
		&Listing{JobID: "b", Title: "Data Analyst", Company: "Acme"},
	)

	if removed := list.DedupByFingerprint(); removed != 1 {
		t.Fatalf("first pass: expected 1 removed, got %d", removed)
	}
	if removed := list.DedupByFingerprint(); removed != 0 {
		t.Fatalf("second pass: expected 0 removed, got %d", removed)
	}
}

func TestFilterNew(t *testing.T) {
	list := &Listings{}
	list.Append(
		&Listing{JobID: "muse_1"},
		&Listing{JobID: "rem_2"},
		&Listing{JobID: "gh_3"},
	)

	existing := map[string]struct{}{
		"rem_2": {},
	}

	fresh := list.FilterNew(existing)
	if fresh.Len() != 2 {
		t.Fatalf("expected 2 new listings, got %d", fresh.Len())
	}
	for _, item := range fresh.Items {
		if item.JobID == "rem_2" {
			t.Fatalf("existing id survived the filter")
		}
	}

	// The original collection is untouched.
	if list.Len() != 3 {
		t.Fatalf("source collection modified, len=%d", list.Len())
	}
}

func TestIDs(t *testing.T) {
	list := &Listings{}
	list.Append(&Listing{JobID: "x"}, &Listing{JobID: "y"})

	ids := list.IDs()
	if len(ids) != 2 || ids[0] != "x" || ids[1] != "y" {
		t.Fatalf("unexpected ids: %v", ids)
	}
}
