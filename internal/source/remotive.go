package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jobradar/jobradar/internal/jobs"
	"github.com/jobradar/jobradar/internal/rules"
	"github.com/jobradar/jobradar/internal/utils"
)

const (
	remotiveName    = "Remotive"
	remotiveBaseURL = "https://remotive.com/api/remote-jobs"
)

// RemotiveParams steers the remote board queries. No key; limits are
// undocumented, so the delay is just politeness.
type RemotiveParams struct {
	Categories []string      `mapstructure:"categories"`
	Limit      int           `mapstructure:"limit"`
	Delay      time.Duration `mapstructure:"delay"`
}

func DefaultRemotiveParams() RemotiveParams {
	return RemotiveParams{
		Categories: []string{"software-dev", "data", "devops", "qa"},
		Limit:      100,
		Delay:      time.Second,
	}
}

type Remotive struct {
	client *Client
	rules  *rules.Table
	params RemotiveParams
	logger *zap.Logger

	BaseURL string
}

func NewRemotive(client *Client, table *rules.Table, params RemotiveParams, logger *zap.Logger) *Remotive {
	return &Remotive{
		client:  client,
		rules:   table,
		params:  params,
		logger:  logger,
		BaseURL: remotiveBaseURL,
	}
}

func (r *Remotive) Name() string { return remotiveName }

type remotiveResponse struct {
	Jobs []remotiveJob `json:"jobs"`
}

type remotiveJob struct {
	ID                        int    `json:"id"`
	Title                     string `json:"title"`
	CompanyName               string `json:"company_name"`
	Salary                    string `json:"salary"`
	CandidateRequiredLocation string `json:"candidate_required_location"`
	Description               string `json:"description"`
	URL                       string `json:"url"`
	PublicationDate           string `json:"publication_date"`
}

// Fetch pulls all active remote listings per configured category. Every
// record is Remote by definition of the source.
func (r *Remotive) Fetch(ctx context.Context) (*jobs.Listings, int, error) {
	list := &jobs.Listings{}
	seen := make(map[string]struct{})
	calls := 0

	r.logger.Info("fetching remote tech roles", zap.String("source", remotiveName))

	for _, category := range r.params.Categories {
		q := url.Values{}
		q.Set("category", category)
		q.Set("limit", fmt.Sprintf("%d", r.params.Limit))

		var resp remotiveResponse
		err := r.client.GetJSON(ctx, remotiveName, r.BaseURL, q, nil, 20*time.Second, &resp)
		calls++
		if err != nil {
			var rateLimited *RateLimitedError
			if errors.As(err, &rateLimited) {
				r.logger.Warn("rate limited, waiting then skipping category",
					zap.String("source", remotiveName),
					zap.String("category", category),
					zap.Duration("retry_after", rateLimited.RetryAfter),
				)
				if werr := r.client.BackOff(ctx, rateLimited, 30*time.Second); werr != nil {
					return list, calls, werr
				}
				continue
			}
			r.logger.Warn("request failed",
				zap.String("source", remotiveName),
				zap.String("category", category),
				zap.Error(err),
			)
			continue
		}

		added := 0
		for _, job := range resp.Jobs {
			jobID := fmt.Sprintf("rem_%d", job.ID)
			if _, ok := seen[jobID]; ok {
				continue
			}
			title := strings.TrimSpace(job.Title)
			if title == "" || !r.rules.IsRelevant(title) {
				continue
			}
			seen[jobID] = struct{}{}

			salMin, salMax := jobs.ParseSalaryRange(job.Salary)

			candidateLoc := job.CandidateRequiredLocation
			if candidateLoc == "" {
				candidateLoc = "Worldwide"
			}

			list.Append(&jobs.Listing{
				JobID:         jobID,
				Title:         title,
				Company:       job.CompanyName,
				Location:      "Remote - " + candidateLoc,
				WorkType:      jobs.WorkTypeRemote,
				SalaryMin:     salMin,
				SalaryMax:     salMax,
				SalaryDisplay: job.Salary,
				Description:   jobs.StripHTML(job.Description),
				ApplyURL:      job.URL,
				CompanyURL:    job.URL,
				Source:        remotiveName,
				DatePosted:    job.PublicationDate,
				MatchScore:    jobs.ScoreUnscored,
			})
			added++
		}

		r.logger.Debug("category fetched",
			zap.String("source", remotiveName),
			zap.String("category", category),
			zap.Int("added", added),
		)

		if err := utils.WaitFor(ctx, r.params.Delay); err != nil {
			return list, calls, err
		}
	}

	r.logger.Info("source done",
		zap.String("source", remotiveName),
		zap.Int("jobs", list.Len()),
		zap.Int("calls", calls),
	)
	return list, calls, nil
}
