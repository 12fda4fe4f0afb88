package cmd

import (
	"context"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/jobradar/jobradar/internal/ai"
	"github.com/jobradar/jobradar/internal/logger"
	"github.com/jobradar/jobradar/internal/store"
)

var rescoreCmd = &cobra.Command{
	Use:   "rescore",
	Short: "Score stored jobs that have no match score yet",
	Run: func(cmd *cobra.Command, _ []string) {
		rescore(cmd)
	},
}

func init() {
	rootCmd.AddCommand(rescoreCmd)

	rescoreCmd.Flags().Int("limit", 0, "max jobs to rescore in one pass (0 = all)")
}

func rescore(cmd *cobra.Command) {
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

	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		zlog.Fatal("reading limit flag", zap.Error(err))
	}

	if err := executeRescore(ctx, config, st, zlog, limit); err != nil {
		zlog.Fatal("rescore failed", zap.Error(err))
	}
}

func executeRescore(ctx context.Context, config *Config, st *store.Store, zlog *zap.Logger, limit int) error {
	generator, err := newGenerator(ctx, config.AI, zlog)
	if err != nil {
		return err
	}
	if generator == nil {
		zlog.Warn("ai is not configured, nothing to do")
		return nil
	}

	pending, err := st.Unscored(ctx, limit)
	if err != nil {
		return err
	}
	if pending.Len() == 0 {
		zlog.Info("no unscored jobs")
		return nil
	}

	zlog.Info("rescoring", zap.Int("jobs", pending.Len()))

	resume, err := readResume(config)
	if err != nil {
		return err
	}

	extra := ""
	if config.Resume != nil {
		extra = config.Resume.Context
	}

	scorerLogger := logger.WithCommonFields(zlog, config.AI.Provider, generator.Model())
	scorer := ai.NewScorer(generator, config.AI.MaxLogLength, scorerLogger)

	aiCalls, err := scorer.Match(ctx, pending, resume, extra)
	if aerr := st.AddUsage(ctx, AIUsageKey, aiCalls); aerr != nil {
		zlog.Warn("recording ai usage", zap.Error(aerr))
	}
	if err != nil {
		return err
	}

	updated := 0
	for _, job := range pending.Items {
		if err := st.UpdateScore(ctx, job); err != nil {
			zlog.Warn("updating score", zap.String("job_id", job.JobID), zap.Error(err))
			continue
		}
		updated++
	}

	zlog.Info("rescore finished", zap.Int("updated", updated))
	return nil
}
