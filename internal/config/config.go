package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv     = "SEJM_AUDIT_CONFIG"
	apiURLEnv         = "SEJM_API_URL"
	databaseDSNEnv    = "DATABASE_DSN"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
)

// Config holds high-level settings required across the application.
type Config struct {
	API           APIConfig          `yaml:"api"`
	Fetch         FetchConfig        `yaml:"fetch"`
	Scope         ScopeConfig        `yaml:"scope"`
	Run           RunConfig          `yaml:"run"`
	Extract       ExtractConfig      `yaml:"extract"`
	Risk          RiskConfig         `yaml:"risk"`
	Database      DatabaseConfig     `yaml:"database"`
	Notifications NotificationConfig `yaml:"notifications"`
	Logging       LoggingConfig      `yaml:"logging"`
}

// APIConfig points at the upstream parliament data source.
type APIConfig struct {
	BaseURL string `yaml:"baseUrl"`
}

// FetchConfig tunes the resilient fetcher shared by all retrieval.
type FetchConfig struct {
	MaxAttempts    int     `yaml:"maxAttempts"`
	TimeoutSeconds int     `yaml:"timeoutSeconds"`
	RatePerSecond  float64 `yaml:"ratePerSecond"`
	RateBurst      int     `yaml:"rateBurst"`
}

// Timeout resolves the per-attempt timeout.
func (f FetchConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSeconds) * time.Second
}

// ScopeConfig selects what a run audits: one process number or a whole term.
type ScopeConfig struct {
	Term    int    `yaml:"term"`
	Process string `yaml:"process"`
}

// RunConfig controls concurrency, output, and attachment handling.
type RunConfig struct {
	Workers             int    `yaml:"workers"`
	DocWorkers          int    `yaml:"docWorkers"`
	DownloadAttachments *bool  `yaml:"downloadAttachments"`
	OutputDir           string `yaml:"outputDir"`
	CacheDir            string `yaml:"cacheDir"`
}

// AttachmentsEnabled resolves the download toggle, defaulting to true.
func (r RunConfig) AttachmentsEnabled() bool {
	return r.DownloadAttachments == nil || *r.DownloadAttachments
}

// ExtractConfig tunes text extraction and the optical fallback.
type ExtractConfig struct {
	MinTextChars int    `yaml:"minTextChars"`
	OCRLanguage  string `yaml:"ocrLanguage"`
	OCRDPI       int    `yaml:"ocrDpi"`
}

// RiskConfig carries scoring weights, thresholds, and keyword triggers.
// Weight values are configuration, never constants inside the engine.
type RiskConfig struct {
	VelocityDays      int                 `yaml:"velocityDays"`
	GapDays           int                 `yaml:"gapDays"`
	KeywordWeight     int                 `yaml:"keywordWeight"`
	CorrelationWeight int                 `yaml:"correlationWeight"`
	Weights           map[string]int      `yaml:"weights"`
	Keywords          map[string][]string `yaml:"keywords"`
}

// DatabaseConfig describes the optional Postgres audit history.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send the run summary.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// LoggingConfig sets the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	return LoadPath(os.Getenv(configPathEnv))
}

// LoadPath loads configuration from an explicit file path.
func LoadPath(path string) Config {
	cfg := defaultConfig()

	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

// Validate reports a fatal configuration error before any work starts.
func (c Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("config: api.baseUrl must be set")
	}
	if c.Scope.Term <= 0 {
		return fmt.Errorf("config: scope.term must be positive, got %d", c.Scope.Term)
	}
	if c.Run.Workers <= 0 || c.Run.DocWorkers <= 0 {
		return fmt.Errorf("config: run.workers and run.docWorkers must be positive")
	}
	if c.Run.OutputDir == "" {
		return fmt.Errorf("config: run.outputDir must be set")
	}
	if c.Run.CacheDir == "" {
		return fmt.Errorf("config: run.cacheDir must be set")
	}
	if c.Fetch.MaxAttempts <= 0 {
		return fmt.Errorf("config: fetch.maxAttempts must be positive")
	}
	if c.Fetch.RatePerSecond <= 0 {
		return fmt.Errorf("config: fetch.ratePerSecond must be positive")
	}
	if c.Risk.VelocityDays <= 0 || c.Risk.GapDays <= 0 {
		return fmt.Errorf("config: risk thresholds must be positive")
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(apiURLEnv); v != "" {
		c.API.BaseURL = v
	}

	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.API.BaseURL != "" {
		base.API = override.API
	}

	if override.Fetch.MaxAttempts > 0 {
		base.Fetch.MaxAttempts = override.Fetch.MaxAttempts
	}
	if override.Fetch.TimeoutSeconds > 0 {
		base.Fetch.TimeoutSeconds = override.Fetch.TimeoutSeconds
	}
	if override.Fetch.RatePerSecond > 0 {
		base.Fetch.RatePerSecond = override.Fetch.RatePerSecond
	}
	if override.Fetch.RateBurst > 0 {
		base.Fetch.RateBurst = override.Fetch.RateBurst
	}

	if override.Scope.Term > 0 {
		base.Scope.Term = override.Scope.Term
	}
	if override.Scope.Process != "" {
		base.Scope.Process = override.Scope.Process
	}

	if override.Run.Workers > 0 {
		base.Run.Workers = override.Run.Workers
	}
	if override.Run.DocWorkers > 0 {
		base.Run.DocWorkers = override.Run.DocWorkers
	}
	if override.Run.DownloadAttachments != nil {
		base.Run.DownloadAttachments = override.Run.DownloadAttachments
	}
	if override.Run.OutputDir != "" {
		base.Run.OutputDir = override.Run.OutputDir
	}
	if override.Run.CacheDir != "" {
		base.Run.CacheDir = override.Run.CacheDir
	}

	if override.Extract.MinTextChars > 0 {
		base.Extract.MinTextChars = override.Extract.MinTextChars
	}
	if override.Extract.OCRLanguage != "" {
		base.Extract.OCRLanguage = override.Extract.OCRLanguage
	}
	if override.Extract.OCRDPI > 0 {
		base.Extract.OCRDPI = override.Extract.OCRDPI
	}

	if override.Risk.VelocityDays > 0 {
		base.Risk.VelocityDays = override.Risk.VelocityDays
	}
	if override.Risk.GapDays > 0 {
		base.Risk.GapDays = override.Risk.GapDays
	}
	if override.Risk.KeywordWeight > 0 {
		base.Risk.KeywordWeight = override.Risk.KeywordWeight
	}
	if override.Risk.CorrelationWeight > 0 {
		base.Risk.CorrelationWeight = override.Risk.CorrelationWeight
	}
	if len(override.Risk.Weights) > 0 {
		base.Risk.Weights = override.Risk.Weights
	}
	if len(override.Risk.Keywords) > 0 {
		base.Risk.Keywords = override.Risk.Keywords
	}

	if override.Database.DSN != "" {
		base.Database = override.Database
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	return base
}

func defaultConfig() Config {
	return Config{
		API: APIConfig{BaseURL: "https://api.sejm.gov.pl/sejm"},
		Fetch: FetchConfig{
			MaxAttempts:    4,
			TimeoutSeconds: 60,
			RatePerSecond:  2,
			RateBurst:      1,
		},
		Scope: ScopeConfig{Term: 10},
		Run: RunConfig{
			Workers:    4,
			DocWorkers: 2,
			OutputDir:  "audit_output",
			CacheDir:   "audit_cache",
		},
		Extract: ExtractConfig{
			MinTextChars: 64,
			OCRLanguage:  "pol",
			OCRDPI:       200,
		},
		Risk: RiskConfig{
			VelocityDays:      14,
			GapDays:           180,
			KeywordWeight:     4,
			CorrelationWeight: 20,
			Weights: map[string]int{
				"fast_passage":          20,
				"missing_committee":     15,
				"missing_first_reading": 10,
				"stage_gap":             5,
				"order_conflict":        10,
				"sponsor_mismatch":      10,
			},
			Keywords: map[string][]string{
				"finance": {
					"uposazenie", "dodatek", "gratyfikacja", "naleznosc",
					"kwota bazowa", "skutki finansowe", "mld zl",
					"srodki majatkowe", "budzet", "zwiekszenie", "wynagrodzenie",
				},
				"security": {
					"wojsko", "obrona narodowa", "zolnierz", "weteran", "amw",
					"uzbrojenie", "modernizacja", "fundusz wsparcia",
					"sluzb specjalnych", "cba", "abw", "skw", "sww",
					"wywiad", "kontrwywiad", "funkcjonariusz",
				},
			},
		},
		Logging: LoggingConfig{Level: "info"},
	}
}
