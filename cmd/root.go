package cmd

import (
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jobradar/jobradar/internal/rules"
)

const (
	app = "jobradar"
)

type Config struct {
	DBPath    string         `mapstructure:"db-path"`
	UserAgent string         `mapstructure:"user-agent"`
	Owner     string         `mapstructure:"owner"`
	Resume    *ResumeConfig  `mapstructure:"resume"`
	Rules     *rules.Table   `mapstructure:"rules"`
	Profile   map[string]any `mapstructure:"profile"`
	Sources   *SourcesConfig `mapstructure:"sources"`
	AI        *AIConfig      `mapstructure:"ai"`
	Watch     *WatchConfig   `mapstructure:"watch"`
}

type ResumeConfig struct {
	File    string `mapstructure:"file"`
	Context string `mapstructure:"context"`
	// GenerateProfile asks the model to derive per-source search
	// parameters from the resume instead of using the profile section.
	GenerateProfile bool `mapstructure:"generate-profile"`
}

type SourcesConfig struct {
	USAJobs *USAJobsConfig `mapstructure:"usajobs"`
	JSearch *JSearchConfig `mapstructure:"jsearch"`
}

type USAJobsConfig struct {
	APIKeyFile string `mapstructure:"api-key-file"`
	Email      string `mapstructure:"email"`
}

type JSearchConfig struct {
	APIKeyFile   string `mapstructure:"api-key-file"`
	MonthlyLimit int    `mapstructure:"monthly-limit"`
}

type AIConfig struct {
	Provider     string        `mapstructure:"provider"`
	MaxLogLength int           `mapstructure:"max-log-length"`
	OpenAI       *OpenAIConfig `mapstructure:"openai"`
	Gemini       *GeminiConfig `mapstructure:"gemini"`
}

type OpenAIConfig struct {
	APIURL     string `mapstructure:"api-url"`
	Model      string `mapstructure:"model"`
	APIKeyFile string `mapstructure:"api-key-file"`
}

type GeminiConfig struct {
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
}

type WatchConfig struct {
	// Schedule is a cron expression or a descriptor like "@every 24h".
	Schedule string `mapstructure:"schedule"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "jobradar aggregates job listings from multiple free APIs and scores them against your resume",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is jobradar.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	viper.SetDefault("db-path", "data/jobs.db")
	viper.SetDefault("owner", "default")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
