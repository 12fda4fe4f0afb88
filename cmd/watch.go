package cmd

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/jobradar/jobradar/internal/logger"
	"github.com/jobradar/jobradar/internal/scrape"
	"github.com/jobradar/jobradar/internal/store"
)

const defaultSchedule = "@every 24h"

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run scrape passes on a schedule until interrupted",
	Run: func(_ *cobra.Command, _ []string) {
		watch()
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func watch() {
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

	st, err := store.Open(config.DBPath)
	if err != nil {
		zlog.Fatal("opening store", zap.Error(err))
	}
	defer st.Close()

	schedule := defaultSchedule
	if config.Watch != nil && config.Watch.Schedule != "" {
		schedule = config.Watch.Schedule
	}

	tracker := scrape.NewTracker()

	pass := func() {
		// Watch mode never prompts and never skips scoring.
		err := executeScrape(ctx, config, st, tracker, zlog, true, false)
		if err != nil && !errors.Is(err, scrape.ErrScrapeInFlight) {
			zlog.Error("scheduled scrape failed", zap.Error(err))
		}
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, pass); err != nil {
		zlog.Fatal("parsing schedule", zap.String("schedule", schedule), zap.Error(err))
	}

	zlog.Info("watch started", zap.String("schedule", schedule))

	// First pass immediately, then on schedule.
	pass()
	c.Start()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	zlog.Info("shutting down")
	<-c.Stop().Done()
}
