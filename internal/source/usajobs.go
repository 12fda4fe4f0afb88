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
	usajobsName    = "USAJobs"
	usajobsBaseURL = "https://data.usajobs.gov/api/Search"
)

// USAJobsParams steers the federal board searches. Requires a free API key
// from developer.usajobs.gov; the user agent must be the registered email.
type USAJobsParams struct {
	APIKey         string
	UserAgentEmail string
	Keywords       []string      `mapstructure:"keywords"`
	ResultsPerPage int           `mapstructure:"results_per_page"`
	// GradeLevels restricts to GS pay grades; 5-9 covers entry/junior.
	GradeLevels string        `mapstructure:"grade_levels"`
	Delay       time.Duration `mapstructure:"delay"`
}

func DefaultUSAJobsParams() USAJobsParams {
	return USAJobsParams{
		Keywords: []string{
			"Software Engineer", "Data Scientist", "Data Analyst",
			"Systems Analyst", "IT Specialist", "Computer Engineer",
			"Cybersecurity", "Cloud Engineer", "Information Technology",
		},
		ResultsPerPage: 25,
		GradeLevels:    "5;6;7;8;9",
		Delay:          time.Second,
	}
}

type USAJobs struct {
	client *Client
	rules  *rules.Table
	params USAJobsParams
	logger *zap.Logger

	BaseURL string
}

func NewUSAJobs(client *Client, table *rules.Table, params USAJobsParams, logger *zap.Logger) *USAJobs {
	return &USAJobs{
		client:  client,
		rules:   table,
		params:  params,
		logger:  logger,
		BaseURL: usajobsBaseURL,
	}
}

func (u *USAJobs) Name() string { return usajobsName }

type usajobsResponse struct {
	SearchResult struct {
		SearchResultItems []struct {
			MatchedObjectDescriptor usajobsDescriptor `json:"MatchedObjectDescriptor"`
		} `json:"SearchResultItems"`
	} `json:"SearchResult"`
}

type usajobsDescriptor struct {
	PositionID       string `json:"PositionID"`
	PositionTitle    string `json:"PositionTitle"`
	PositionURI      string `json:"PositionURI"`
	OrganizationName string `json:"OrganizationName"`
	DepartmentName   string `json:"DepartmentName"`
	PositionLocation []struct {
		LocationName string  `json:"LocationName"`
		Latitude     float64 `json:"Latitude"`
		Longitude    float64 `json:"Longitude"`
	} `json:"PositionLocation"`
	PositionRemuneration []struct {
		MinimumRange     string `json:"MinimumRange"`
		MaximumRange     string `json:"MaximumRange"`
		RateIntervalCode string `json:"RateIntervalCode"`
	} `json:"PositionRemuneration"`
	PublicationStartDate string `json:"PublicationStartDate"`
	UserArea             struct {
		Details struct {
			JobSummary string `json:"JobSummary"`
			Telework   string `json:"Telework"`
		} `json:"Details"`
	} `json:"UserArea"`
}

// Fetch searches federal listings per configured keyword, nationwide. A 429
// aborts the remaining keywords for this pass; federal rate limits reset
// slowly enough that retrying the rest is pointless.
func (u *USAJobs) Fetch(ctx context.Context) (*jobs.Listings, int, error) {
	list := &jobs.Listings{}
	calls := 0

	if u.params.APIKey == "" || u.params.UserAgentEmail == "" {
		u.logger.Info("skipped, no API key configured", zap.String("source", usajobsName))
		return list, 0, nil
	}

	seen := make(map[string]struct{})
	headers := map[string]string{
		"Authorization-Key": u.params.APIKey,
		"User-Agent":        u.params.UserAgentEmail,
		"Host":              "data.usajobs.gov",
	}

	u.logger.Info("searching federal listings",
		zap.String("source", usajobsName),
		zap.Int("keywords", len(u.params.Keywords)),
	)

	for _, keyword := range u.params.Keywords {
		q := url.Values{}
		q.Set("Keyword", keyword)
		q.Set("ResultsPerPage", strconv.Itoa(u.params.ResultsPerPage))
		q.Set("SortField", "OpenDate")
		q.Set("SortDirection", "Desc")
		q.Set("GradeLevel", u.params.GradeLevels)

		var resp usajobsResponse
		err := u.client.GetJSON(ctx, usajobsName, u.BaseURL, q, headers, 20*time.Second, &resp)
		calls++
		if err != nil {
			var rateLimited *RateLimitedError
			if errors.As(err, &rateLimited) {
				u.logger.Warn("rate limited, skipping remaining keywords",
					zap.String("source", usajobsName),
					zap.String("keyword", keyword),
				)
				break
			}
			u.logger.Warn("request failed",
				zap.String("source", usajobsName),
				zap.String("keyword", keyword),
				zap.Error(err),
			)
			continue
		}

		added := 0
		for _, item := range resp.SearchResult.SearchResultItems {
			match := item.MatchedObjectDescriptor
			jobID := "usa_" + match.PositionID
			if match.PositionID == "" {
				continue
			}
			if _, ok := seen[jobID]; ok {
				continue
			}
			title := strings.TrimSpace(match.PositionTitle)
			if title == "" || !u.rules.IsRelevant(title) {
				continue
			}
			seen[jobID] = struct{}{}

			company := match.OrganizationName
			if company == "" {
				company = match.DepartmentName
			}

			location := "United States"
			var lat, lng *float64
			if len(match.PositionLocation) > 0 {
				loc := match.PositionLocation[0]
				location = loc.LocationName
				if loc.Latitude != 0 || loc.Longitude != 0 {
					lat, lng = &loc.Latitude, &loc.Longitude
				}
			}

			workType := jobs.WorkTypeOnsite
			if strings.Contains(strings.ToLower(match.UserArea.Details.Telework), "remote") {
				workType = jobs.WorkTypeRemote
			}

			var salMin, salMax *int
			salDisplay := ""
			if len(match.PositionRemuneration) > 0 {
				rem := match.PositionRemuneration[0]
				salMin = toInt(rem.MinimumRange)
				salMax = toInt(rem.MaximumRange)
				if salMin != nil && salMax != nil {
					interval := strings.ToLower(rem.RateIntervalCode)
					if interval == "" {
						interval = "yr"
					}
					salDisplay = fmt.Sprintf("$%d-$%d/%s", *salMin, *salMax, interval)
				}
			}

			list.Append(&jobs.Listing{
				JobID:         jobID,
				Title:         title,
				Company:       company,
				Location:      location,
				Lat:           lat,
				Lng:           lng,
				WorkType:      workType,
				SalaryMin:     salMin,
				SalaryMax:     salMax,
				SalaryDisplay: salDisplay,
				Description:   jobs.Truncate(match.UserArea.Details.JobSummary, jobs.DescriptionLimit),
				ApplyURL:      match.PositionURI,
				CompanyURL:    match.PositionURI,
				Source:        usajobsName,
				DatePosted:    match.PublicationStartDate,
				MatchScore:    jobs.ScoreUnscored,
			})
			added++
		}

		u.logger.Debug("keyword searched",
			zap.String("source", usajobsName),
			zap.String("keyword", keyword),
			zap.Int("added", added),
		)

		if err := utils.WaitFor(ctx, u.params.Delay); err != nil {
			return list, calls, err
		}
	}

	u.logger.Info("source done",
		zap.String("source", usajobsName),
		zap.Int("jobs", list.Len()),
		zap.Int("calls", calls),
	)
	return list, calls, nil
}

func toInt(s string) *int {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	n := int(f)
	return &n
}
