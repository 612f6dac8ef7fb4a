package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"ticketbot/internal/labels"
)

const defaultExternalHTTPTimeout = 30 * time.Second
const defaultExternalHTTPTimeoutSeconds = int(defaultExternalHTTPTimeout / time.Second)

const (
	PredictorService   = "service"
	PredictorAnthropic = "anthropic"

	defaultLLMModel           = "claude-sonnet-4-5-20250929"
	defaultDBPath             = "./ticketbot.db"
	defaultLogLevel           = "info"
	defaultSessionIdleMinutes = 30
	defaultOutcomesTopic      = "ticket-outcomes"
	defaultOTelEndpoint       = "localhost:4317"
)

type Config struct {
	ClassifierBaseURL          string   `yaml:"classifier_base_url"`
	ExternalHTTPTimeoutSeconds int      `yaml:"external_http_timeout_seconds"`
	Labels                     []string `yaml:"labels"`

	Predictor       string `yaml:"predictor"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	LLMModel        string `yaml:"llm_model"`

	SlackBotToken       string   `yaml:"slack_bot_token"`
	SlackAppToken       string   `yaml:"slack_app_token"`
	ManagerSlackIDs     []string `yaml:"manager_slack_ids"`
	ReportChannelID     string   `yaml:"report_channel_id"`
	StatsDigestSchedule string   `yaml:"stats_digest_schedule"`
	SessionIdleMinutes  int      `yaml:"session_idle_minutes"`

	DBPath   string `yaml:"db_path"`
	LogLevel string `yaml:"log_level"`

	OTelEnabled  bool   `yaml:"otel_enabled"`
	OTelEndpoint string `yaml:"otel_endpoint"`
	OTelInsecure bool   `yaml:"otel_insecure"`

	KafkaBrokers       []string `yaml:"kafka_brokers"`
	KafkaOutcomesTopic string   `yaml:"kafka_outcomes_topic"`

	Timezone string `yaml:"timezone"`

	Location *time.Location `yaml:"-"` // computed from Timezone, not from YAML
}

// LoadConfig reads config.yaml (or CONFIG_PATH), applies environment
// overrides and defaults, and validates the result. Slack credentials are
// checked separately by ValidateSlack since only the bot needs them.
func LoadConfig() (Config, error) {
	var cfg Config

	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing %s: %w", configPath, err)
		}
	}

	var errs []error
	envOverride(&cfg.ClassifierBaseURL, "CLASSIFIER_BASE_URL")
	errs = append(errs, envOverrideInt(&cfg.ExternalHTTPTimeoutSeconds, "EXTERNAL_HTTP_TIMEOUT_SECONDS"))
	envOverrideList(&cfg.Labels, "LABELS")
	envOverride(&cfg.Predictor, "PREDICTOR")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.LLMModel, "LLM_MODEL")
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.SlackAppToken, "SLACK_APP_TOKEN")
	envOverrideList(&cfg.ManagerSlackIDs, "MANAGER_SLACK_IDS")
	envOverride(&cfg.ReportChannelID, "REPORT_CHANNEL_ID")
	envOverrideAllowEmpty(&cfg.StatsDigestSchedule, "STATS_DIGEST_SCHEDULE")
	errs = append(errs, envOverrideInt(&cfg.SessionIdleMinutes, "SESSION_IDLE_MINUTES"))
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.LogLevel, "LOG_LEVEL")
	envOverrideBool(&cfg.OTelEnabled, "OTEL_ENABLED")
	envOverride(&cfg.OTelEndpoint, "OTEL_ENDPOINT")
	envOverrideBool(&cfg.OTelInsecure, "OTEL_INSECURE")
	envOverrideList(&cfg.KafkaBrokers, "KAFKA_BROKERS")
	envOverride(&cfg.KafkaOutcomesTopic, "KAFKA_OUTCOMES_TOPIC")
	envOverride(&cfg.Timezone, "TIMEZONE")
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}

	cfg.ClassifierBaseURL = strings.TrimRight(strings.TrimSpace(cfg.ClassifierBaseURL), "/")
	if len(cfg.Labels) == 0 {
		cfg.Labels = append([]string(nil), labels.Default...)
	}
	if cfg.Predictor == "" {
		cfg.Predictor = PredictorService
	}
	if cfg.LLMModel == "" {
		cfg.LLMModel = defaultLLMModel
	}
	if cfg.ExternalHTTPTimeoutSeconds == 0 {
		cfg.ExternalHTTPTimeoutSeconds = defaultExternalHTTPTimeoutSeconds
	}
	if cfg.SessionIdleMinutes == 0 {
		cfg.SessionIdleMinutes = defaultSessionIdleMinutes
	}
	if cfg.DBPath == "" {
		cfg.DBPath = defaultDBPath
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = defaultOTelEndpoint
	}
	if cfg.KafkaOutcomesTopic == "" {
		cfg.KafkaOutcomesTopic = defaultOutcomesTopic
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Local"
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.ClassifierBaseURL == "" {
		return errors.New("required config 'classifier_base_url' is not set (via config.yaml or env var)")
	}
	u, err := url.Parse(c.ClassifierBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid classifier_base_url '%s': must be an http(s) URL with a host", c.ClassifierBaseURL)
	}
	if _, err := labels.New(c.Labels); err != nil {
		return fmt.Errorf("invalid labels: %w", err)
	}

	switch c.Predictor {
	case PredictorService:
	case PredictorAnthropic:
		if c.AnthropicAPIKey == "" {
			return errors.New("anthropic_api_key is required when predictor=anthropic")
		}
	default:
		return fmt.Errorf("predictor must be '%s' or '%s', got '%s'", PredictorService, PredictorAnthropic, c.Predictor)
	}

	if strings.EqualFold(c.Timezone, "Local") {
		c.Location = time.Local
	} else {
		loc, err := time.LoadLocation(c.Timezone)
		if err != nil {
			return fmt.Errorf("invalid timezone '%s': %w", c.Timezone, err)
		}
		c.Location = loc
	}

	if c.ExternalHTTPTimeoutSeconds < 5 {
		return fmt.Errorf("invalid external_http_timeout_seconds '%d': must be >= 5", c.ExternalHTTPTimeoutSeconds)
	}
	if c.SessionIdleMinutes < 1 {
		return fmt.Errorf("invalid session_idle_minutes '%d': must be >= 1", c.SessionIdleMinutes)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level '%s': must be debug, info, warn or error", c.LogLevel)
	}
	return nil
}

// ValidateSlack checks the settings only the Slack bot needs.
func (c Config) ValidateSlack() error {
	required := []struct{ name, val string }{
		{"slack_bot_token", c.SlackBotToken},
		{"slack_app_token", c.SlackAppToken},
	}
	for _, r := range required {
		if r.val == "" {
			return fmt.Errorf("required config '%s' is not set (via config.yaml or env var)", r.name)
		}
	}
	if c.StatsDigestSchedule != "" && c.ReportChannelID == "" {
		return errors.New("stats_digest_schedule is set but report_channel_id is empty")
	}
	return nil
}

func (c Config) IsManagerID(userID string) bool {
	for _, id := range c.ManagerSlackIDs {
		if strings.TrimSpace(id) == userID {
			return true
		}
	}
	return false
}

func (c Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func (c Config) SessionIdle() time.Duration {
	return time.Duration(c.SessionIdleMinutes) * time.Minute
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideAllowEmpty(field *string, envKey string) {
	if val, ok := os.LookupEnv(envKey); ok {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}

func envOverrideBool(field *bool, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = strings.EqualFold(val, "true") || val == "1"
	}
}

func envOverrideList(field *[]string, envKey string) {
	raw := os.Getenv(envKey)
	if raw == "" {
		return
	}
	*field = nil
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			*field = append(*field, item)
		}
	}
}
