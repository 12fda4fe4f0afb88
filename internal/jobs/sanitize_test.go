package jobs

import (
	"strings"
	"testing"
)

func TestStripHTML(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"tags removed", "<p>Build <b>great</b> software</p>", "Build great software"},
		{"whitespace collapsed", "line one\n\n\t line two", "line one line two"},
		{"plain text untouched", "no markup here", "no markup here"},
		{"empty", "   ", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := StripHTML(tc.in); got != tc.want {
				t.Fatalf("StripHTML(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestStripHTMLCapsLength(t *testing.T) {
	long := "<div>" + strings.Repeat("a", DescriptionLimit+500) + "</div>"
	got := StripHTML(long)
	if len([]rune(got)) != DescriptionLimit {
		t.Fatalf("expected description capped at %d runes, got %d", DescriptionLimit, len([]rune(got)))
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("héllo", 3); got != "hél" {
		t.Fatalf("expected rune-safe cut, got %q", got)
	}
	if got := Truncate("short", 100); got != "short" {
		t.Fatalf("expected untouched string, got %q", got)
	}
	if got := Truncate("anything", 0); got != "" {
		t.Fatalf("expected empty string for zero limit, got %q", got)
	}
}

func TestParseSalaryRange(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		wantMin int
		wantMax int
		wantNil bool
	}{
		{"range", "$40,000 - $60,000 per year", 40000, 60000, false},
		{"single value", "up to $85,000", 85000, 85000, false},
		{"reversed order", "$90,000 down from $120,000", 90000, 120000, false},
		{"hourly noise ignored", "$25 - $30 per hour", 0, 0, true},
		{"no numbers", "competitive", 0, 0, true},
		{"empty", "", 0, 0, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			min, max := ParseSalaryRange(tc.in)
			if tc.wantNil {
				if min != nil || max != nil {
					t.Fatalf("expected nils, got %v %v", min, max)
				}
				return
			}
			if min == nil || max == nil {
				t.Fatalf("expected values, got %v %v", min, max)
			}
			if *min != tc.wantMin || *max != tc.wantMax {
				t.Fatalf("got %d-%d, want %d-%d", *min, *max, tc.wantMin, tc.wantMax)
			}
		})
	}
}

func TestGuessWorkType(t *testing.T) {
	cases := []struct {
		title    string
		location string
		want     string
	}{
		{"Software Engineer", "Remote", WorkTypeRemote},
		{"Remote QA Analyst", "Chicago, IL", WorkTypeRemote},
		{"Data Analyst", "", WorkTypeRemote},
		{"Developer (Hybrid)", "Indianapolis, IN", WorkTypeHybrid},
		{"Systems Engineer", "Hybrid - Columbus, OH", WorkTypeHybrid},
		{"Junior Developer", "Fort Wayne, IN", WorkTypeOnsite},
	}

	for _, tc := range cases {
		if got := GuessWorkType(tc.title, tc.location); got != tc.want {
			t.Fatalf("GuessWorkType(%q, %q) = %q, want %q", tc.title, tc.location, got, tc.want)
		}
	}
}
