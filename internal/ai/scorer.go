package ai

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "embed"

	"go.uber.org/zap"

	"github.com/jobradar/jobradar/internal/jobs"
	"github.com/jobradar/jobradar/internal/utils"
)

//go:embed prompt.md
var promptTemplate string

var (
	attemptBackoff = 3 * time.Second
	batchDelay     = time.Second
)

const (
	// batchSize bounds prompt size and cost per call.
	batchSize   = 5
	maxAttempts = 3

	resumeLimit  = 2500
	summaryLimit = 400

	systemPrompt = "You are a JSON-only API. Respond only with valid JSON arrays."

	defaultMaxLogLength = 200
)

// Scorer batches listings with the resume text, calls the model, and
// assigns match scores. Failures are localized: a batch that exhausts its
// retries is marked unscored and the next batch still runs.
type Scorer struct {
	generator Generator
	logger    *zap.Logger
	maxLogLen int
}

func NewScorer(generator Generator, maxLogLength int, logger *zap.Logger) *Scorer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	return &Scorer{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

// Match scores every listing in place and returns the total number of model
// calls made, including failed attempts, for usage accounting. It never
// fails a listing fatally: exhausted batches end up unscored with a reason
// the rescore command recognizes.
func (s *Scorer) Match(ctx context.Context, list *jobs.Listings, resume, extra string) (int, error) {
	aiCalls := 0
	totalBatches := (list.Len() + batchSize - 1) / batchSize

	resumeShort := jobs.Truncate(resume, resumeLimit)
	contextStr := ""
	if extra != "" {
		contextStr = "\nExtra context: " + extra
	}

	for i := 0; i < list.Len(); i += batchSize {
		end := i + batchSize
		if end > list.Len() {
			end = list.Len()
		}
		batch := list.Items[i:end]
		batchNum := i/batchSize + 1

		s.logger.Info("scoring batch",
			zap.Int("batch", batchNum),
			zap.Int("total_batches", totalBatches),
			zap.Int("jobs", len(batch)),
		)

		prompt := s.buildPrompt(batch, resumeShort, contextStr)

		success := false
		for attempt := 1; attempt <= maxAttempts; attempt++ {
			if err := ctx.Err(); err != nil {
				return aiCalls, err
			}

			raw, err := s.generator.Generate(ctx, systemPrompt, prompt)
			aiCalls++
			if err == nil {
				var ratings []map[string]any
				ratings, err = ExtractJSONArray(raw, len(batch))
				if err == nil {
					s.assign(batch, ratings)
					success = true
					break
				}
			}

			s.logger.Warn("scoring attempt failed",
				zap.Int("batch", batchNum),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", maxAttempts),
				zap.String("response", utils.TruncateForLog(raw, s.maxLogLen)),
				zap.Error(err),
			)

			if attempt < maxAttempts {
				if werr := utils.WaitFor(ctx, attemptBackoff); werr != nil {
					return aiCalls, werr
				}
			}
		}

		if !success {
			s.logger.Warn("batch failed all retries, marking unscored", zap.Int("batch", batchNum))
			for _, job := range batch {
				job.MatchScore = jobs.ScoreUnscored
				job.MatchReasons = "AI matching failed - use rescore to retry"
			}
		}

		if err := utils.WaitFor(ctx, batchDelay); err != nil {
			return aiCalls, err
		}
	}

	s.logger.Info("scoring complete",
		zap.Int("jobs", list.Len()),
		zap.Int("ai_calls", aiCalls),
	)
	return aiCalls, nil
}

func (s *Scorer) buildPrompt(batch []*jobs.Listing, resumeShort, contextStr string) string {
	var summaries strings.Builder
	for i, job := range batch {
		salary := job.SalaryDisplay
		if salary == "" {
			salary = "unlisted"
		}
		fmt.Fprintf(&summaries, "\nJob %d: %s @ %s\nLocation: %s | Type: %s | Salary: %s\nDesc: %s\n---",
			i+1, job.Title, job.Company, job.Location, job.WorkType, salary,
			jobs.Truncate(job.Description, summaryLimit),
		)
	}

	prompt := strings.ReplaceAll(promptTemplate, "{{RESUME}}", resumeShort)
	prompt = strings.ReplaceAll(prompt, "{{CONTEXT}}", contextStr)
	prompt = strings.ReplaceAll(prompt, "{{JOBS}}", summaries.String())
	prompt = strings.ReplaceAll(prompt, "{{COUNT}}", strconv.Itoa(len(batch)))
	return prompt
}

// assign applies ratings to the batch in order. A short response leaves the
// tail unscored with a partial-response reason.
func (s *Scorer) assign(batch []*jobs.Listing, ratings []map[string]any) {
	for i, job := range batch {
		if i >= len(ratings) {
			job.MatchScore = jobs.ScoreUnscored
			job.MatchReasons = "Score unavailable (partial response)"
			continue
		}

		r := ratings[i]
		job.MatchScore = clampScore(coerceInt(r["score"], 50))
		job.MatchReasons = strings.TrimSpace(coerceString(r["reasons"]))
		if wt := coerceString(r["work_type"]); isWorkType(wt) {
			job.WorkType = wt
		}
	}
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func isWorkType(s string) bool {
	return s == jobs.WorkTypeRemote || s == jobs.WorkTypeHybrid || s == jobs.WorkTypeOnsite
}

func coerceInt(v any, fallback int) int {
	switch val := v.(type) {
	case float64:
		return int(val)
	case int:
		return val
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return fallback
		}
		return int(f)
	default:
		return fallback
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	default:
		if v == nil {
			return ""
		}
		return fmt.Sprintf("%v", v)
	}
}
