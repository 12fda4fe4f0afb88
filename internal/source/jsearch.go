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
	jsearchName    = "JSearch"
	jsearchBaseURL = "https://jsearch.p.rapidapi.com/search"

	// DefaultJSearchMonthlyLimit is the free-tier budget.
	DefaultJSearchMonthlyLimit = 200
)

// CompanyQuery is one targeted search against the quota-limited API.
type CompanyQuery struct {
	Name  string `mapstructure:"name"`
	Query string `mapstructure:"query"`
}

// JSearchParams steers the quota-limited search. The 200/month free tier is
// reserved for a short list of named-company queries; the orchestrator gates
// this adapter behind the monthly budget check.
type JSearchParams struct {
	APIKey    string
	Companies []CompanyQuery `mapstructure:"companies"`
	Delay     time.Duration  `mapstructure:"delay"`
}

func DefaultJSearchParams() JSearchParams {
	return JSearchParams{
		Companies: []CompanyQuery{
			{Name: "Rolls-Royce", Query: "Rolls-Royce software engineer Indiana"},
			{Name: "Caterpillar", Query: "Caterpillar software engineer entry level Indiana"},
			{Name: "Allison Transmission", Query: "Allison Transmission software engineer Indianapolis"},
			{Name: "Cummins", Query: "Cummins software engineer entry level Indiana"},
			{Name: "KSM", Query: "KSM Katz Sapper Miller technology analyst Indianapolis"},
			{Name: "Eli Lilly", Query: "Eli Lilly software engineer data engineer Indianapolis entry level"},
			{Name: "Purdue University", Query: "Purdue University research programmer software engineer West Lafayette"},
			{Name: "OneAmerica", Query: "OneAmerica software engineer Indianapolis"},
			{Name: "Ivy Tech", Query: "Ivy Tech software technology Indianapolis"},
			{Name: "IUPUI", Query: "IUPUI Indiana University software IT engineer Indianapolis"},
		},
		Delay: 500 * time.Millisecond,
	}
}

type JSearch struct {
	client *Client
	rules  *rules.Table
	params JSearchParams
	logger *zap.Logger

	BaseURL string
}

func NewJSearch(client *Client, table *rules.Table, params JSearchParams, logger *zap.Logger) *JSearch {
	return &JSearch{
		client:  client,
		rules:   table,
		params:  params,
		logger:  logger,
		BaseURL: jsearchBaseURL,
	}
}

func (j *JSearch) Name() string { return jsearchName }

type jsearchResponse struct {
	Data []jsearchJob `json:"data"`
}

type jsearchJob struct {
	JobID           string   `json:"job_id"`
	JobTitle        string   `json:"job_title"`
	EmployerName    string   `json:"employer_name"`
	EmployerWebsite string   `json:"employer_website"`
	JobCity         string   `json:"job_city"`
	JobState        string   `json:"job_state"`
	JobCountry      string   `json:"job_country"`
	JobLatitude     *float64 `json:"job_latitude"`
	JobLongitude    *float64 `json:"job_longitude"`
	JobIsRemote     bool     `json:"job_is_remote"`
	JobMinSalary    *float64 `json:"job_min_salary"`
	JobMaxSalary    *float64 `json:"job_max_salary"`
	JobSalaryPeriod string   `json:"job_salary_period"`
	JobDescription  string   `json:"job_description"`
	JobApplyLink    string   `json:"job_apply_link"`
	JobPostedAtUTC  string   `json:"job_posted_at_datetime_utc"`
}

// Fetch runs the targeted company queries. A 429 stops the remaining
// queries outright; the budget is too scarce to wait out.
func (j *JSearch) Fetch(ctx context.Context) (*jobs.Listings, int, error) {
	list := &jobs.Listings{}
	seen := make(map[string]struct{})
	calls := 0

	headers := map[string]string{
		"X-RapidAPI-Key":  j.params.APIKey,
		"X-RapidAPI-Host": "jsearch.p.rapidapi.com",
	}

	j.logger.Info("running targeted company searches",
		zap.String("source", jsearchName),
		zap.Int("companies", len(j.params.Companies)),
	)

	for _, company := range j.params.Companies {
		q := url.Values{}
		q.Set("query", company.Query+" in United States")
		q.Set("page", "1")
		q.Set("num_pages", "1")
		q.Set("date_posted", "month")

		var resp jsearchResponse
		err := j.client.GetJSON(ctx, jsearchName+"/"+company.Name, j.BaseURL, q, headers, 20*time.Second, &resp)
		calls++
		if err != nil {
			var rateLimited *RateLimitedError
			if errors.As(err, &rateLimited) {
				j.logger.Warn("rate limited, stopping company searches",
					zap.String("source", jsearchName),
					zap.String("company", company.Name),
				)
				break
			}
			j.logger.Warn("request failed",
				zap.String("source", jsearchName),
				zap.String("company", company.Name),
				zap.Error(err),
			)
			continue
		}

		added := 0
		for _, job := range resp.Data {
			if job.JobID == "" {
				continue
			}
			if _, ok := seen[job.JobID]; ok {
				continue
			}
			if !j.rules.IsRelevant(job.JobTitle) {
				continue
			}
			seen[job.JobID] = struct{}{}

			employer := job.EmployerName
			if employer == "" {
				employer = company.Name
			}

			location := strings.Join(compact(job.JobCity, job.JobState), ", ")
			if location == "" {
				location = job.JobCountry
			}

			workType := jobs.WorkTypeOnsite
			if job.JobIsRemote {
				workType = jobs.WorkTypeRemote
			}

			companyURL := job.EmployerWebsite
			if companyURL == "" {
				companyURL = job.JobApplyLink
			}

			list.Append(&jobs.Listing{
				JobID:         job.JobID,
				Title:         job.JobTitle,
				Company:       employer,
				Location:      location,
				Lat:           job.JobLatitude,
				Lng:           job.JobLongitude,
				WorkType:      workType,
				SalaryMin:     floatToInt(job.JobMinSalary),
				SalaryMax:     floatToInt(job.JobMaxSalary),
				SalaryDisplay: formatSalary(job.JobMinSalary, job.JobMaxSalary, job.JobSalaryPeriod),
				Description:   jobs.Truncate(job.JobDescription, jobs.DescriptionLimit),
				ApplyURL:      job.JobApplyLink,
				CompanyURL:    companyURL,
				Source:        company.Name,
				DatePosted:    job.JobPostedAtUTC,
				MatchScore:    jobs.ScoreUnscored,
			})
			added++
		}

		j.logger.Debug("company searched",
			zap.String("source", jsearchName),
			zap.String("company", company.Name),
			zap.Int("added", added),
		)

		if err := utils.WaitFor(ctx, j.params.Delay); err != nil {
			return list, calls, err
		}
	}

	j.logger.Info("source done",
		zap.String("source", jsearchName),
		zap.Int("jobs", list.Len()),
		zap.Int("calls", calls),
	)
	return list, calls, nil
}

func compact(parts ...string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func floatToInt(f *float64) *int {
	if f == nil {
		return nil
	}
	n := int(*f)
	return &n
}

func formatSalary(min, max *float64, period string) string {
	switch {
	case min != nil && max != nil:
		if strings.EqualFold(period, "HOUR") {
			return fmt.Sprintf("$%.0f-$%.0f/hr", *min, *max)
		}
		return fmt.Sprintf("$%d-$%d/yr", int(*min), int(*max))
	case max != nil:
		return fmt.Sprintf("Up to $%d", int(*max))
	default:
		return ""
	}
}
