package source

import (
	"context"
	"encoding/json"
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
	greenhouseName   = "Greenhouse"
	greenhouseAPIFmt = "https://boards-api.greenhouse.io/v1/boards/%s/jobs"
)

// Board identifies one company board. Token is the slug in
// boards.greenhouse.io/{token}.
type Board struct {
	Name  string `mapstructure:"name"`
	Token string `mapstructure:"token"`
}

// GreenhouseParams steers the company-board pulls. The API is CDN-cached and
// effectively unlimited, but a small delay keeps us polite.
type GreenhouseParams struct {
	Boards []Board       `mapstructure:"boards"`
	Delay  time.Duration `mapstructure:"delay"`
}

func DefaultGreenhouseParams() GreenhouseParams {
	return GreenhouseParams{
		Boards: []Board{
			{Name: "Salesforce", Token: "salesforce"},
			{Name: "Angi", Token: "angi"},
			{Name: "Corteva", Token: "corteva"},
			{Name: "Genesys", Token: "genesys"},
			{Name: "Rolls-Royce", Token: "rollsroyce"},
			{Name: "Raytheon", Token: "raytheon"},
			{Name: "Carrier", Token: "carrier"},
			{Name: "Lilly", Token: "lilly"},
			{Name: "Infosys", Token: "infosys"},
			{Name: "Cummins", Token: "cummins"},
			{Name: "Allegion", Token: "allegion"},
			{Name: "Kyndryl", Token: "kyndryl"},
			{Name: "Anthology", Token: "anthology"},
			{Name: "Formstack", Token: "formstack"},
			{Name: "KAR Global", Token: "karglobal"},
			{Name: "Caliber Collision", Token: "calibercollision"},
			{Name: "First Internet Bank", Token: "firstinternetbank"},
			{Name: "Exact Sciences", Token: "exactsciences"},
			{Name: "Resultant", Token: "resultant"},
			{Name: "Emplify", Token: "emplify"},
			{Name: "Notion", Token: "notion"},
			{Name: "Figma", Token: "figma"},
			{Name: "Stripe", Token: "stripe"},
			{Name: "Plaid", Token: "plaid"},
			{Name: "Brex", Token: "brex"},
			{Name: "Weights & Biases", Token: "wandb"},
			{Name: "Scale AI", Token: "scaleai"},
			{Name: "Neon", Token: "neondatabase"},
		},
		Delay: 300 * time.Millisecond,
	}
}

type Greenhouse struct {
	client *Client
	rules  *rules.Table
	params GreenhouseParams
	logger *zap.Logger

	// APIFormat is a Sprintf pattern taking the board token; overridable
	// for tests.
	APIFormat string
}

func NewGreenhouse(client *Client, table *rules.Table, params GreenhouseParams, logger *zap.Logger) *Greenhouse {
	return &Greenhouse{
		client:    client,
		rules:     table,
		params:    params,
		logger:    logger,
		APIFormat: greenhouseAPIFmt,
	}
}

func (g *Greenhouse) Name() string { return greenhouseName }

type greenhouseResponse struct {
	Jobs []greenhouseJob `json:"jobs"`
}

type greenhouseJob struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	Location    json.RawMessage `json:"location"`
	Content     string          `json:"content"`
	AbsoluteURL string          `json:"absolute_url"`
	UpdatedAt   string          `json:"updated_at"`
}

// locationName handles both object ({"name": ...}) and bare-string shapes.
func (j *greenhouseJob) locationName() string {
	if len(j.Location) == 0 {
		return ""
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(j.Location, &obj); err == nil && obj.Name != "" {
		return obj.Name
	}
	var s string
	if err := json.Unmarshal(j.Location, &s); err == nil {
		return s
	}
	return ""
}

// Fetch pulls the configured company boards. Boards mix every seniority
// level with no query-side filtering, so this adapter applies a stricter
// two-keyword pass: the title must look technical, and either carry an
// entry-level keyword or survive the common exclusion list.
func (g *Greenhouse) Fetch(ctx context.Context) (*jobs.Listings, int, error) {
	list := &jobs.Listings{}
	seen := make(map[string]struct{})
	calls := 0
	var failedBoards []string

	g.logger.Info("pulling company boards",
		zap.String("source", greenhouseName),
		zap.Int("boards", len(g.params.Boards)),
	)

	for _, board := range g.params.Boards {
		boardURL := fmt.Sprintf(g.APIFormat, board.Token)
		q := url.Values{}
		q.Set("content", "true")

		var resp greenhouseResponse
		err := g.client.GetJSON(ctx, greenhouseName+"/"+board.Name, boardURL, q, nil, 15*time.Second, &resp)
		calls++
		if err != nil {
			var rateLimited *RateLimitedError
			if errors.As(err, &rateLimited) {
				g.logger.Warn("board rate limited, skipping",
					zap.String("source", greenhouseName),
					zap.String("board", board.Name),
				)
				if werr := g.client.BackOff(ctx, rateLimited, 15*time.Second); werr != nil {
					return list, calls, werr
				}
				continue
			}
			// Many tokens simply do not exist; collect and report once.
			failedBoards = append(failedBoards, board.Name)
			continue
		}

		added := 0
		for _, job := range resp.Jobs {
			jobID := fmt.Sprintf("gh_%d", job.ID)
			if _, ok := seen[jobID]; ok {
				continue
			}
			title := strings.TrimSpace(job.Title)
			if title == "" {
				continue
			}
			if !g.rules.IsTech(title) {
				continue
			}
			if !g.rules.IsEntryLevel(title) && !g.rules.IsRelevant(title) {
				continue
			}
			if !g.rules.IsRelevant(title) {
				continue
			}
			seen[jobID] = struct{}{}

			location := job.locationName()

			list.Append(&jobs.Listing{
				JobID:       jobID,
				Title:       title,
				Company:     board.Name,
				Location:    location,
				WorkType:    jobs.GuessWorkType("", location),
				Description: jobs.StripHTML(job.Content),
				ApplyURL:    job.AbsoluteURL,
				CompanyURL:  "https://boards.greenhouse.io/" + board.Token,
				Source:      greenhouseName,
				DatePosted:  job.UpdatedAt,
				MatchScore:  jobs.ScoreUnscored,
			})
			added++
		}

		if added > 0 {
			g.logger.Debug("board fetched",
				zap.String("source", greenhouseName),
				zap.String("board", board.Name),
				zap.Int("added", added),
			)
		}

		if err := utils.WaitFor(ctx, g.params.Delay); err != nil {
			return list, calls, err
		}
	}

	if len(failedBoards) > 0 {
		g.logger.Warn("boards not found, tokens may be wrong",
			zap.String("source", greenhouseName),
			zap.Int("count", len(failedBoards)),
			zap.Strings("boards", failedBoards),
		)
	}

	g.logger.Info("source done",
		zap.String("source", greenhouseName),
		zap.Int("jobs", list.Len()),
		zap.Int("calls", calls),
	)
	return list, calls, nil
}
