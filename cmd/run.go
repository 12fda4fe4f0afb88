package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/jobradar/jobradar/internal/ai"
	"github.com/jobradar/jobradar/internal/ai/gemini"
	"github.com/jobradar/jobradar/internal/ai/openai"
	"github.com/jobradar/jobradar/internal/logger"
	"github.com/jobradar/jobradar/internal/rules"
	"github.com/jobradar/jobradar/internal/scrape"
	"github.com/jobradar/jobradar/internal/secrets"
	"github.com/jobradar/jobradar/internal/source"
	"github.com/jobradar/jobradar/internal/store"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"

	// AIUsageKey is the usage-counter source name for model calls.
	AIUsageKey = "ai"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one scrape pass: fetch, dedup, score new jobs, persist",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation before spending AI quota")
	runCmd.Flags().Bool("skip-ai", false, "store new jobs unscored; use rescore later")
}

func run(cmd *cobra.Command) {
	ctx := context.Background()

	zlog, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		zlog.Fatal("getting a config", zap.Error(err))
	}
	if config == nil {
		zlog.Fatal("config is required")
	}

	zlog.Info("starting jobradar", zap.String("version", version))

	st, err := store.Open(config.DBPath)
	if err != nil {
		zlog.Fatal("opening store", zap.Error(err))
	}
	defer st.Close()

	tracker := scrape.NewTracker()

	autoApprove := cmd.Flag("yes").Value.String() == "true"
	skipAI := cmd.Flag("skip-ai").Value.String() == "true"

	if err := executeScrape(ctx, config, st, tracker, zlog, autoApprove, skipAI); err != nil {
		zlog.Fatal("scrape failed", zap.Error(err))
	}
}

// executeScrape runs the full pipeline once: scrape, filter to new jobs,
// optionally score, persist, record usage. Shared by run and watch.
func executeScrape(ctx context.Context, config *Config, st *store.Store, tracker *scrape.Tracker, zlog *zap.Logger, autoApprove, skipAI bool) error {
	status, err := tracker.Begin(config.Owner)
	if err != nil {
		if errors.Is(err, scrape.ErrScrapeInFlight) {
			zlog.Warn("scrape rejected", zap.String("owner", config.Owner), zap.Error(err))
		}
		return err
	}

	started := time.Now()
	jobsFound := 0
	var runErr error
	defer func() {
		tracker.Finish(status, jobsFound, runErr)
		statusText := "success"
		if runErr != nil {
			statusText = "error: " + runErr.Error()
		}
		if err := st.RecordScrape(ctx, started, time.Now(), jobsFound, statusText); err != nil {
			zlog.Warn("recording scrape log", zap.Error(err))
		}
	}()

	table := config.Rules
	if table == nil {
		table = rules.Default()
	}

	profile, generator, err := prepareProfileAndGenerator(ctx, config, zlog)
	if err != nil {
		runErr = err
		return err
	}

	scraper, err := buildScraper(config, st, table, profile, zlog)
	if err != nil {
		runErr = err
		return err
	}

	listings, counts, err := scraper.Run(ctx, status)
	if err != nil {
		runErr = err
		return err
	}

	for name, calls := range counts {
		if err := st.AddUsage(ctx, name, calls); err != nil {
			zlog.Warn("recording source usage", zap.String("source", name), zap.Error(err))
		}
	}

	existing, err := st.ExistingIDs(ctx)
	if err != nil {
		runErr = err
		return err
	}
	fresh := listings.FilterNew(existing)

	zlog.Info("new jobs after store lookup",
		zap.Int("scraped", listings.Len()),
		zap.Int("new", fresh.Len()),
	)

	if fresh.Len() == 0 {
		status.Update("no new jobs")
		return nil
	}

	if !skipAI && generator != nil && confirmScoring(fresh.Len(), autoApprove, zlog) {
		status.Update(fmt.Sprintf("scoring %d new jobs", fresh.Len()))
		resume, err := readResume(config)
		if err != nil {
			runErr = err
			return err
		}

		scorerLogger := logger.WithCommonFields(zlog, config.AI.Provider, generator.Model())
		scorer := ai.NewScorer(generator, config.AI.MaxLogLength, scorerLogger)

		extra := ""
		if config.Resume != nil {
			extra = config.Resume.Context
		}

		aiCalls, err := scorer.Match(ctx, fresh, resume, extra)
		if aerr := st.AddUsage(ctx, AIUsageKey, aiCalls); aerr != nil {
			zlog.Warn("recording ai usage", zap.Error(aerr))
		}
		if err != nil {
			runErr = err
			return err
		}
	}

	inserted, err := st.UpsertListings(ctx, fresh)
	if err != nil {
		runErr = err
		return err
	}
	jobsFound = inserted

	status.Update(fmt.Sprintf("done, %d new jobs saved", inserted))
	zlog.Info("scrape pass finished",
		zap.Int("new_jobs", inserted),
		zap.Duration("took", time.Since(started)),
	)
	return nil
}

func confirmScoring(count int, autoApprove bool, zlog *zap.Logger) bool {
	if autoApprove {
		return true
	}

	prompt := promptui.Select{
		Label: fmt.Sprintf("Score %d new jobs with AI?", count),
		Items: []string{PromptYes, PromptNo},
	}

	_, action, err := prompt.Run()
	if err != nil {
		zlog.Warn("prompt failed, skipping scoring", zap.Error(err))
		return false
	}

	if action != PromptYes {
		zlog.Info("scoring skipped", zap.String("reason", "got no from prompt"))
		return false
	}
	return true
}

// prepareProfileAndGenerator resolves the per-source search profile and the
// AI generator. Profile generation failures fall back to the configured or
// default profile; a missing AI section just disables scoring.
func prepareProfileAndGenerator(ctx context.Context, config *Config, zlog *zap.Logger) (source.Profile, ai.Generator, error) {
	profile := source.Profile(config.Profile)

	generator, err := newGenerator(ctx, config.AI, zlog)
	if err != nil {
		return nil, nil, err
	}
	if generator == nil {
		zlog.Info("ai is not configured, jobs will be stored unscored")
	}

	if config.Resume != nil && config.Resume.GenerateProfile && generator != nil {
		resume, err := readResume(config)
		if err != nil {
			return nil, nil, err
		}
		generated, err := ai.GenerateProfile(ctx, generator, resume, zlog)
		if err != nil {
			zlog.Warn("profile generation failed, using configured defaults", zap.Error(err))
		} else {
			profile = generated
		}
	}

	return profile, generator, nil
}

func newGenerator(ctx context.Context, cfg *AIConfig, zlog *zap.Logger) (ai.Generator, error) {
	if cfg == nil {
		return nil, nil
	}

	switch provider := strings.TrimSpace(strings.ToLower(cfg.Provider)); provider {
	case "", "openai":
		if cfg.OpenAI == nil {
			if provider == "" {
				return nil, nil
			}
			return nil, errors.New("openai configuration is required when provider is openai")
		}
		apiKey, err := secrets.Load(secrets.Source{
			Name: "openai api key",
			File: cfg.OpenAI.APIKeyFile,
			Env:  "OPENAI_API_KEY",
		})
		if err != nil {
			return nil, err
		}
		return openai.New(cfg.OpenAI.APIURL, apiKey, cfg.OpenAI.Model, zlog)
	case "gemini":
		if cfg.Gemini == nil {
			return nil, errors.New("gemini configuration is required when provider is gemini")
		}
		apiKey, err := secrets.Load(secrets.Source{
			Name: "gemini api key",
			File: cfg.Gemini.APIKeyFile,
			Env:  "GEMINI_API_KEY",
		})
		if err != nil {
			return nil, err
		}
		return gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model)
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
}

// buildScraper wires the adapters in priority order: free sources first,
// the quota-limited search last behind the monthly budget gate.
func buildScraper(config *Config, st *store.Store, table *rules.Table, profile source.Profile, zlog *zap.Logger) (*scrape.Scraper, error) {
	client := source.NewClient(zlog)
	if config.UserAgent != "" {
		client.UserAgent = config.UserAgent
	}

	museParams := source.DefaultMuseParams()
	if err := source.DecodeParams(profile, "The Muse", &museParams); err != nil {
		return nil, err
	}

	remotiveParams := source.DefaultRemotiveParams()
	if err := source.DecodeParams(profile, "Remotive", &remotiveParams); err != nil {
		return nil, err
	}

	greenhouseParams := source.DefaultGreenhouseParams()
	if err := source.DecodeParams(profile, "Greenhouse", &greenhouseParams); err != nil {
		return nil, err
	}

	usajobsParams := source.DefaultUSAJobsParams()
	if err := source.DecodeParams(profile, "USAJobs", &usajobsParams); err != nil {
		return nil, err
	}
	if config.Sources != nil && config.Sources.USAJobs != nil {
		key, err := secrets.Load(secrets.Source{
			Name: "usajobs api key",
			File: config.Sources.USAJobs.APIKeyFile,
			Env:  "USAJOBS_API_KEY",
		})
		if err != nil {
			zlog.Info("usajobs key not available, source will be skipped", zap.Error(err))
		} else {
			usajobsParams.APIKey = key
			usajobsParams.UserAgentEmail = config.Sources.USAJobs.Email
		}
	}

	sources := []scrape.Source{
		{Adapter: source.NewMuse(client, table, museParams, zlog)},
		{Adapter: source.NewRemotive(client, table, remotiveParams, zlog)},
		{Adapter: source.NewGreenhouse(client, table, greenhouseParams, zlog)},
		{Adapter: source.NewUSAJobs(client, table, usajobsParams, zlog)},
	}

	limits := map[string]int{}
	if config.Sources != nil && config.Sources.JSearch != nil {
		key, err := secrets.Load(secrets.Source{
			Name: "jsearch api key",
			File: config.Sources.JSearch.APIKeyFile,
			Env:  "JSEARCH_API_KEY",
		})
		if err != nil {
			zlog.Info("jsearch key not available, source will be skipped", zap.Error(err))
		} else {
			jsearchParams := source.DefaultJSearchParams()
			if derr := source.DecodeParams(profile, "JSearch", &jsearchParams); derr != nil {
				return nil, derr
			}
			jsearchParams.APIKey = key

			adapter := source.NewJSearch(client, table, jsearchParams, zlog)
			sources = append(sources, scrape.Source{Adapter: adapter, Metered: true})

			limit := config.Sources.JSearch.MonthlyLimit
			if limit <= 0 {
				limit = source.DefaultJSearchMonthlyLimit
			}
			limits[adapter.Name()] = limit
		}
	}

	budget := &store.MonthlyBudget{Store: st, Limits: limits}
	return scrape.New(sources, budget, zlog), nil
}

func readResume(config *Config) (string, error) {
	if config.Resume == nil || strings.TrimSpace(config.Resume.File) == "" {
		return "", errors.New("resume file is required under resume.file to score jobs")
	}
	data, err := os.ReadFile(config.Resume.File)
	if err != nil {
		return "", fmt.Errorf("reading resume: %w", err)
	}
	return string(data), nil
}
