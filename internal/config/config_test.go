package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ticketbot/internal/labels"
)

func setMinimalValidConfigEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing-config.yaml"))
	t.Setenv("CLASSIFIER_BASE_URL", "http://classifier.internal:5000/")
	t.Setenv("TIMEZONE", "UTC")
}

func TestLoadConfigFromEnvWithDefaults(t *testing.T) {
	setMinimalValidConfigEnv(t)
	t.Setenv("MANAGER_SLACK_IDS", "U12345, U67890")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.ClassifierBaseURL != "http://classifier.internal:5000" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.ClassifierBaseURL)
	}
	if cfg.Predictor != PredictorService {
		t.Fatalf("unexpected predictor default: %q", cfg.Predictor)
	}
	if cfg.DBPath != "./ticketbot.db" {
		t.Fatalf("unexpected db path default: %q", cfg.DBPath)
	}
	if cfg.ExternalHTTPTimeoutSeconds != int(defaultExternalHTTPTimeout/time.Second) {
		t.Fatalf("unexpected external HTTP timeout default: %d", cfg.ExternalHTTPTimeoutSeconds)
	}
	if cfg.SessionIdle() != 30*time.Minute {
		t.Fatalf("unexpected session idle default: %v", cfg.SessionIdle())
	}
	if cfg.KafkaOutcomesTopic != "ticket-outcomes" || cfg.KafkaEnabled() {
		t.Fatalf("unexpected kafka defaults: topic=%q enabled=%v", cfg.KafkaOutcomesTopic, cfg.KafkaEnabled())
	}
	if len(cfg.Labels) != len(labels.Default) {
		t.Fatalf("expected default labels, got %v", cfg.Labels)
	}
	if cfg.Location == nil || cfg.Location.String() != "UTC" {
		t.Fatalf("unexpected location: %v", cfg.Location)
	}
	if len(cfg.ManagerSlackIDs) != 2 || !cfg.IsManagerID("U67890") {
		t.Fatalf("unexpected manager IDs: %v", cfg.ManagerSlackIDs)
	}
}

func TestLoadConfigYAMLAndEnvOverride(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
classifier_base_url: "https://tickets.example.com"
predictor: "anthropic"
anthropic_api_key: "yaml-anthropic"
labels: ["Access", "Hardware", "Storage"]
timezone: "America/Los_Angeles"
db_path: "/tmp/yaml.db"
external_http_timeout_seconds: 75
kafka_brokers: ["kafka-1:9092"]
`
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("CONFIG_PATH", cfgPath)
	t.Setenv("DB_PATH", "/tmp/env.db")
	t.Setenv("EXTERNAL_HTTP_TIMEOUT_SECONDS", "120")
	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.ClassifierBaseURL != "https://tickets.example.com" {
		t.Fatalf("expected base URL from yaml, got %q", cfg.ClassifierBaseURL)
	}
	if cfg.Predictor != PredictorAnthropic || cfg.AnthropicAPIKey != "yaml-anthropic" {
		t.Fatalf("expected anthropic predictor from yaml")
	}
	if strings.Join(cfg.Labels, ",") != "Access,Hardware,Storage" {
		t.Fatalf("expected labels from yaml, got %v", cfg.Labels)
	}
	if cfg.DBPath != "/tmp/env.db" {
		t.Fatalf("expected db path from env override, got %q", cfg.DBPath)
	}
	if cfg.ExternalHTTPTimeoutSeconds != 120 {
		t.Fatalf("expected external HTTP timeout from env override, got %d", cfg.ExternalHTTPTimeoutSeconds)
	}
	if len(cfg.KafkaBrokers) != 2 {
		t.Fatalf("expected kafka brokers from env override, got %v", cfg.KafkaBrokers)
	}
}

func TestLoadConfigRequiresBaseURL(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing-config.yaml"))
	t.Setenv("CLASSIFIER_BASE_URL", "")

	_, err := LoadConfig()
	if err == nil || !strings.Contains(err.Error(), "classifier_base_url") {
		t.Fatalf("expected missing base URL error, got %v", err)
	}
}

func TestLoadConfigValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{"bad url", "CLASSIFIER_BASE_URL", "ftp://classifier", "classifier_base_url"},
		{"bad timezone", "TIMEZONE", "Mars/Colony", "timezone"},
		{"short timeout", "EXTERNAL_HTTP_TIMEOUT_SECONDS", "2", "external_http_timeout_seconds"},
		{"non-numeric timeout", "EXTERNAL_HTTP_TIMEOUT_SECONDS", "soon", "EXTERNAL_HTTP_TIMEOUT_SECONDS"},
		{"unknown predictor", "PREDICTOR", "oracle", "predictor"},
		{"anthropic without key", "PREDICTOR", "anthropic", "anthropic_api_key"},
		{"duplicate labels", "LABELS", "Access,Access", "labels"},
		{"bad log level", "LOG_LEVEL", "chatty", "log_level"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setMinimalValidConfigEnv(t)
			t.Setenv("ANTHROPIC_API_KEY", "")
			t.Setenv(tc.key, tc.val)

			_, err := LoadConfig()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestValidateSlack(t *testing.T) {
	cfg := Config{SlackBotToken: "xoxb-test"}
	if err := cfg.ValidateSlack(); err == nil || !strings.Contains(err.Error(), "slack_app_token") {
		t.Fatalf("expected missing app token error, got %v", err)
	}
	cfg.SlackAppToken = "xapp-test"
	if err := cfg.ValidateSlack(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg.StatsDigestSchedule = "0 9 * * 1"
	if err := cfg.ValidateSlack(); err == nil {
		t.Fatal("expected digest without report channel to fail")
	}
}

func TestEnvOverrideHelpers(t *testing.T) {
	s := "initial"
	t.Setenv("TB_TEST_STR", "value")
	envOverride(&s, "TB_TEST_STR")
	if s != "value" {
		t.Fatalf("envOverride failed, got %q", s)
	}

	i := 1
	t.Setenv("TB_TEST_INT", "42")
	if err := envOverrideInt(&i, "TB_TEST_INT"); err != nil || i != 42 {
		t.Fatalf("envOverrideInt failed, got %d (%v)", i, err)
	}

	b := false
	t.Setenv("TB_TEST_BOOL", "1")
	envOverrideBool(&b, "TB_TEST_BOOL")
	if !b {
		t.Fatalf("envOverrideBool failed, got %v", b)
	}

	list := []string{"old"}
	t.Setenv("TB_TEST_LIST", " a, ,b ")
	envOverrideList(&list, "TB_TEST_LIST")
	if strings.Join(list, "|") != "a|b" {
		t.Fatalf("envOverrideList failed, got %v", list)
	}

	schedule := "0 9 * * 1"
	t.Setenv("TB_TEST_EMPTY", "")
	envOverrideAllowEmpty(&schedule, "TB_TEST_EMPTY")
	if schedule != "" {
		t.Fatalf("envOverrideAllowEmpty failed, got %q", schedule)
	}
}
