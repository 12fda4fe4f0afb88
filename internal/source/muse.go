package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jobradar/jobradar/internal/jobs"
	"github.com/jobradar/jobradar/internal/rules"
	"github.com/jobradar/jobradar/internal/utils"
)

const (
	museName    = "The Muse"
	museBaseURL = "https://www.themuse.com/api/public/jobs"
	// The API pages in chunks of 20; a short page means the last one.
	musePageSize = 20
)

// MuseParams steers the generic board queries. No API key needed; the
// published limit is 500 req/hr and the delay keeps us well under it.
type MuseParams struct {
	Categories []string      `mapstructure:"categories"`
	Levels     []string      `mapstructure:"levels"`
	MaxPages   int           `mapstructure:"max_pages"`
	Delay      time.Duration `mapstructure:"delay"`
}

func DefaultMuseParams() MuseParams {
	return MuseParams{
		Categories: []string{"Software Engineer", "Data Science", "Data Analytics", "IT", "QA"},
		// Avoid senior.
		Levels:   []string{"entry level", "mid level"},
		MaxPages: 3,
		Delay:    500 * time.Millisecond,
	}
}

type Muse struct {
	client *Client
	rules  *rules.Table
	params MuseParams
	logger *zap.Logger

	// BaseURL is overridable for tests.
	BaseURL string
}

func NewMuse(client *Client, table *rules.Table, params MuseParams, logger *zap.Logger) *Muse {
	return &Muse{
		client:  client,
		rules:   table,
		params:  params,
		logger:  logger,
		BaseURL: museBaseURL,
	}
}

func (m *Muse) Name() string { return museName }

type museResponse struct {
	Results []museJob `json:"results"`
}

type museJob struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Company struct {
		Name string `json:"name"`
	} `json:"company"`
	Locations []struct {
		Name string `json:"name"`
	} `json:"locations"`
	PublicationDate string `json:"publication_date"`
	Contents        string `json:"contents"`
	Refs            struct {
		LandingPage string `json:"landing_page"`
	} `json:"refs"`
}

// Fetch pulls entry/mid-level tech roles across the configured category and
// level combinations, paging until a short page or the page cap.
func (m *Muse) Fetch(ctx context.Context) (*jobs.Listings, int, error) {
	list := &jobs.Listings{}
	seen := make(map[string]struct{})
	calls := 0

	m.logger.Info("fetching entry-level tech roles", zap.String("source", museName))

	for _, category := range m.params.Categories {
		for _, level := range m.params.Levels {
		pages:
			for page := 0; page < m.params.MaxPages; page++ {
				q := url.Values{}
				q.Set("category", category)
				q.Set("level", level)
				q.Set("page", strconv.Itoa(page))
				q.Set("descending", "true")

				var resp museResponse
				err := m.client.GetJSON(ctx, museName, m.BaseURL, q, nil, 15*time.Second, &resp)
				calls++
				if err != nil {
					var rateLimited *RateLimitedError
					if errors.As(err, &rateLimited) {
						m.logger.Warn("rate limited, skipping remaining pages",
							zap.String("source", museName),
							zap.String("category", category),
						)
						if werr := m.client.BackOff(ctx, rateLimited, 30*time.Second); werr != nil {
							return list, calls, werr
						}
						break pages
					}
					m.logger.Warn("request failed",
						zap.String("source", museName),
						zap.String("category", category),
						zap.String("level", level),
						zap.Int("page", page),
						zap.Error(err),
					)
					break pages
				}

				if len(resp.Results) == 0 {
					break pages
				}

				added := 0
				for _, job := range resp.Results {
					jobID := fmt.Sprintf("muse_%d", job.ID)
					if _, ok := seen[jobID]; ok {
						continue
					}
					title := strings.TrimSpace(job.Name)
					if title == "" || !m.rules.IsRelevant(title) {
						continue
					}
					seen[jobID] = struct{}{}

					locations := make([]string, 0, len(job.Locations))
					for _, loc := range job.Locations {
						locations = append(locations, loc.Name)
					}
					location := "Remote"
					if len(locations) > 0 {
						location = strings.Join(locations, ", ")
					}

					list.Append(&jobs.Listing{
						JobID:       jobID,
						Title:       title,
						Company:     job.Company.Name,
						Location:    location,
						WorkType:    jobs.GuessWorkType(title, location),
						Description: jobs.StripHTML(job.Contents),
						ApplyURL:    job.Refs.LandingPage,
						CompanyURL:  job.Refs.LandingPage,
						Source:      museName,
						DatePosted:  job.PublicationDate,
						MatchScore:  jobs.ScoreUnscored,
					})
					added++
				}

				m.logger.Debug("page fetched",
					zap.String("source", museName),
					zap.String("category", category),
					zap.String("level", level),
					zap.Int("page", page),
					zap.Int("added", added),
				)

				if err := utils.WaitFor(ctx, m.params.Delay); err != nil {
					return list, calls, err
				}

				if len(resp.Results) < musePageSize {
					break pages
				}
			}
		}
	}

	m.logger.Info("source done",
		zap.String("source", museName),
		zap.Int("jobs", list.Len()),
		zap.Int("calls", calls),
	)
	return list, calls, nil
}
