// Package source contains the job board adapters. Each adapter fetches one
// external API, normalizes its native schema into the common listing shape,
// applies the title pre-filter, and paces its own requests. Adapters are
// partial-failure tolerant: a single bad page, category, or board is logged
// and skipped, never aborting the adapter.
package source

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/jobradar/jobradar/internal/jobs"
)

// Adapter normalizes one external job source into the common record shape.
// Fetch returns the accepted listings plus the number of HTTP calls made,
// including calls that failed, for quota accounting by the caller.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context) (*jobs.Listings, int, error)
}

// Profile steers per-source query parameters. Keys are adapter names; values
// are opaque parameter maps (hand-curated defaults or AI-generated from a
// resume) decoded by each adapter into its own params struct.
type Profile map[string]any

// DecodeParams fills out from the profile section for key, leaving out
// untouched when the profile has no section for that source. out should be
// pre-populated with defaults. Durations accept the string spelling
// ("500ms"), same as the viper config path.
func DecodeParams(p Profile, key string, out any) error {
	raw, ok := p[key]
	if !ok || raw == nil {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
		Result:     out,
	})
	if err != nil {
		return fmt.Errorf("profile section %q: %w", key, err)
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("profile section %q: %w", key, err)
	}
	return nil
}
