// Package app assembles the classifier service, outcome store, and
// observers shared by every front end.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ticketbot/internal/classifier"
	"ticketbot/internal/config"
	"ticketbot/internal/events"
	"ticketbot/internal/httpx"
	"ticketbot/internal/integrations/llm"
	"ticketbot/internal/labels"
	"ticketbot/internal/metrics"
	"ticketbot/internal/session"
	"ticketbot/internal/storage/sqlite"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	Config   config.Config
	Registry *labels.Registry
	Service  classifier.Service
	DB       *sql.DB
	Logger   *zap.Logger

	observer  session.Observer
	exporter  *metrics.Exporter
	publisher *events.Publisher
}

// New opens the outcome store and builds the prediction service and the
// observer chain for cfg. Close releases everything New opened.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	appliedHTTPTimeout := httpx.ConfigureExternalHTTPClient(cfg.ExternalHTTPTimeoutSeconds)
	logger.Info("Config loaded",
		zap.String("classifier_base_url", cfg.ClassifierBaseURL),
		zap.String("predictor", cfg.Predictor),
		zap.Int("labels", len(cfg.Labels)),
		zap.Int("managers", len(cfg.ManagerSlackIDs)),
		zap.String("timezone", cfg.Timezone),
		zap.Duration("external_http_timeout", appliedHTTPTimeout),
		zap.Bool("otel_enabled", cfg.OTelEnabled),
		zap.Bool("kafka_enabled", cfg.KafkaEnabled()),
	)

	registry, err := labels.New(cfg.Labels)
	if err != nil {
		return nil, fmt.Errorf("label registry: %w", err)
	}

	client, err := classifier.NewClient(cfg.ClassifierBaseURL, httpx.ExternalHTTPClient(), logger.Named("classifier"))
	if err != nil {
		return nil, err
	}
	var service classifier.Service = client
	if cfg.Predictor == config.PredictorAnthropic {
		predictor := llm.NewPredictor(cfg.AnthropicAPIKey, cfg.LLMModel, registry, httpx.ExternalHTTPClient(), logger.Named("llm"))
		service = classifier.Combine(predictor, client)
	}

	db, err := sqlite.InitDB(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	logger.Info("Database initialized", zap.String("path", cfg.DBPath))

	a := &App{
		Config:   cfg,
		Registry: registry,
		Service:  service,
		DB:       db,
		Logger:   logger,
	}

	observers := []session.Observer{sqlite.NewOutcomeRecorder(db, logger.Named("outcomes"))}
	if cfg.OTelEnabled {
		exp, err := metrics.NewExporter(ctx, metrics.Config{
			Endpoint: cfg.OTelEndpoint,
			Enabled:  cfg.OTelEnabled,
			Insecure: cfg.OTelInsecure,
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("metrics exporter: %w", err)
		}
		a.exporter = exp
		observers = append(observers, exp.Recorder)
		logger.Info("OTEL metrics enabled", zap.String("endpoint", cfg.OTelEndpoint))
	} else {
		observers = append(observers, metrics.NewNoop())
	}
	if cfg.KafkaEnabled() {
		a.publisher = events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaOutcomesTopic, logger.Named("kafka"))
		observers = append(observers, a.publisher)
		logger.Info("Publishing outcomes to Kafka",
			zap.Strings("brokers", cfg.KafkaBrokers),
			zap.String("topic", cfg.KafkaOutcomesTopic),
		)
	}
	a.observer = session.Observers(observers...)
	return a, nil
}

// NewController starts a fresh session tagged with source (slack, tui, cli).
func (a *App) NewController(source string) *session.Controller {
	return session.NewController(a.Service, a.Registry,
		session.WithObserver(a.observer),
		session.WithLogger(a.Logger.With(zap.String("source", source))),
		session.WithSource(source),
	)
}

// Close flushes metrics and queued outcome events, then closes the store.
func (a *App) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if a.publisher != nil {
		errs = append(errs, a.publisher.Close())
	}
	if a.exporter != nil {
		errs = append(errs, a.exporter.Close(ctx))
	}
	errs = append(errs, a.DB.Close())
	return errors.Join(errs...)
}
