package cmd

import (
	"errors"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "autofill"
)

type Config struct {
	Profile   string         `mapstructure:"profile"`
	UserAgent string         `mapstructure:"user-agent"`
	Job       *JobConfig     `mapstructure:"job"`
	AI        *AIConfig      `mapstructure:"ai"`
	Tracker   *TrackerConfig `mapstructure:"tracker"`
	Cache     *CacheConfig   `mapstructure:"cache"`
	Fill      *FillConfig    `mapstructure:"fill"`
	Browser   *BrowserConfig `mapstructure:"browser"`
}

type JobConfig struct {
	Title   string `mapstructure:"title"`
	Company string `mapstructure:"company"`
}

type AIConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Provider    string        `mapstructure:"provider"`
	MinTokens   int           `mapstructure:"min-tokens"`
	MaxTokens   int           `mapstructure:"max-tokens"`
	Temperature float64       `mapstructure:"temperature"`
	Gemini      *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeys      []string `mapstructure:"api-keys"`
	APIKeyFiles  []string `mapstructure:"api-key-files"`
	Model        string   `mapstructure:"model"`
	MaxRetries   int      `mapstructure:"max-retries"`
	MaxLogLength int      `mapstructure:"max-log-length"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	// PasswordFile takes precedence over Password.
	PasswordFile string `mapstructure:"password-file"`
	DB           int    `mapstructure:"db"`
}

type TrackerConfig struct {
	// Backend is file or redis.
	Backend   string        `mapstructure:"backend"`
	Path      string        `mapstructure:"path"`
	Key       string        `mapstructure:"key"`
	Retention time.Duration `mapstructure:"retention"`
	Redis     *RedisConfig  `mapstructure:"redis"`
}

type CacheConfig struct {
	// Backend is memory or redis.
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
	Redis   *RedisConfig  `mapstructure:"redis"`
}

type FillConfig struct {
	MaxSteps     int           `mapstructure:"max-steps"`
	ReadyTimeout time.Duration `mapstructure:"ready-timeout"`
	WriteDelay   time.Duration `mapstructure:"write-delay"`
}

type BrowserConfig struct {
	Headless bool          `mapstructure:"headless"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "autofill fills job application forms from a candidate profile",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	envs := map[string]string{
		"profile":                     "AUTOFILL_PROFILE",
		"ai.gemini.api-keys":          "GEMINI_API_KEYS",
		"ai.gemini.api-key-files":     "GEMINI_API_KEY_FILE",
		"tracker.redis.addr":          "AUTOFILL_REDIS_ADDR",
		"tracker.redis.password":      "AUTOFILL_REDIS_PASSWORD",
		"tracker.redis.password-file": "AUTOFILL_REDIS_PASSWORD_FILE",
		"cache.redis.addr":            "AUTOFILL_REDIS_ADDR",
		"cache.redis.password":        "AUTOFILL_REDIS_PASSWORD",
		"cache.redis.password-file":   "AUTOFILL_REDIS_PASSWORD_FILE",
	}
	for key, env := range envs {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	viper.SetDefault("tracker.backend", "file")
	viper.SetDefault("tracker.path", "autofill-answers.json")
	viper.SetDefault("cache.backend", "memory")
	viper.SetDefault("browser.headless", true)

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is autofill.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging and reports")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// A missing .env file is normal.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("loading .env: %v", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		// Without an explicit --config the file is optional: flags and env can carry everything.
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		log.Fatal(err)
	}
}

const redactedValue = "***"

// redacted returns a copy of the config with inline secrets masked, for logging.
func redacted(config *Config) *Config {
	if config == nil {
		return nil
	}
	out := *config
	if config.AI != nil {
		aiCfg := *config.AI
		if aiCfg.Gemini != nil {
			gemini := *aiCfg.Gemini
			gemini.APIKeys = make([]string, len(aiCfg.Gemini.APIKeys))
			for i := range gemini.APIKeys {
				gemini.APIKeys[i] = redactedValue
			}
			aiCfg.Gemini = &gemini
		}
		out.AI = &aiCfg
	}
	if config.Tracker != nil {
		trackerCfg := *config.Tracker
		trackerCfg.Redis = redactedRedis(trackerCfg.Redis)
		out.Tracker = &trackerCfg
	}
	if config.Cache != nil {
		cacheCfg := *config.Cache
		cacheCfg.Redis = redactedRedis(cacheCfg.Redis)
		out.Cache = &cacheCfg
	}
	return &out
}

func redactedRedis(cfg *RedisConfig) *RedisConfig {
	if cfg == nil {
		return nil
	}
	out := *cfg
	if out.Password != "" {
		out.Password = redactedValue
	}
	return &out
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}
	if config == nil {
		config = &Config{}
	}

	return config, nil
}
