package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jobradar/jobradar/internal/jobs"
	"github.com/jobradar/jobradar/internal/source"
	"github.com/jobradar/jobradar/internal/utils"
)

const profilePrompt = `You are a job search assistant. Read the resume below and produce
per-source search parameters for a job aggregator.

RESUME:
%s

Respond with ONLY a JSON array containing exactly one object. Keys are source
sections; include only sections you can fill:
[{"The Muse":{"categories":["Software Engineer"],"levels":["entry level"]},
  "Remotive":{"categories":["software-dev"]},
  "USAJobs":{"keywords":["Software Engineer"]}}]
No prose, no markdown, ONLY the JSON array.`

// GenerateProfile asks the model to turn a resume into per-source query
// parameters. It mirrors the scorer's call/parse/retry shape; on exhaustion
// the caller should fall back to the built-in defaults.
func GenerateProfile(ctx context.Context, generator Generator, resume string, logger *zap.Logger) (source.Profile, error) {
	prompt := fmt.Sprintf(profilePrompt, jobs.Truncate(resume, resumeLimit))

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		raw, err := generator.Generate(ctx, systemPrompt, prompt)
		if err == nil {
			var parsed []map[string]any
			parsed, err = ExtractJSONArray(raw, 1)
			if err == nil && len(parsed) > 0 {
				profile := make(source.Profile, len(parsed[0]))
				for k, v := range parsed[0] {
					profile[strings.TrimSpace(k)] = v
				}
				return profile, nil
			}
			if err == nil {
				err = errors.New("empty profile response")
			}
		}

		lastErr = err
		logger.Warn("profile generation attempt failed",
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		if attempt < maxAttempts {
			if werr := utils.WaitFor(ctx, attemptBackoff); werr != nil {
				return nil, werr
			}
		}
	}

	return nil, fmt.Errorf("generating search profile: %w", lastErr)
}
