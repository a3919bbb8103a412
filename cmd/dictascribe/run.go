package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"dictascribe/internal/audio"
	"dictascribe/internal/bus"
	"dictascribe/internal/config"
	"dictascribe/internal/dashboard"
	"dictascribe/internal/legacy"
	"dictascribe/internal/locator"
	"dictascribe/internal/logging"
	"dictascribe/internal/monitor"
	"dictascribe/internal/pipeline"
	"dictascribe/internal/relational"
	"dictascribe/internal/share"
	"dictascribe/internal/spool"
	"dictascribe/internal/srencoder"
	"dictascribe/internal/statusstore"
	"dictascribe/internal/transcriber"
)

func runMonitor(parent context.Context) error {
	log := logging.New()

	if err := bus.CheckExistingMonitor(); err != nil {
		return err
	}

	manager, err := config.NewManager(logging.Module(log, "config"))
	if err != nil {
		return err
	}
	cfg := manager.GetConfig()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := manager.StartWatching(ctx); err != nil {
		log.WithError(err).Warn("config hot reload unavailable")
	}
	defer manager.Stop()

	status, err := statusstore.NewMongoStore(ctx, cfg.Mongo.URI, cfg.Mongo.Database, logging.Module(log, "statusstore"))
	if err != nil {
		return fmt.Errorf("document store unreachable: %w", err)
	}
	defer status.Close(context.Background())

	oracle, err := relational.NewOracleStore(cfg.Oracle)
	if err != nil {
		return fmt.Errorf("relational database unreachable: %w", err)
	}
	defer oracle.Close()
	if err := oracle.Ping(ctx); err != nil {
		return fmt.Errorf("relational database unreachable: %w", err)
	}

	orch, err := buildOrchestrator(ctx, cfg, oracle, status, log)
	if err != nil {
		return err
	}

	mon := monitor.New(oracle, status, orch, manager, logging.Module(log, "monitor"))

	if err := bus.CreatePidFile(); err != nil {
		return fmt.Errorf("create pid file: %w", err)
	}
	defer bus.RemovePidFile()

	ln, err := bus.Listen()
	if err != nil {
		return fmt.Errorf("open control socket: %w", err)
	}
	defer ln.Close()
	control := monitor.NewControlServer(mon, cancel, logging.Module(log, "control"))
	go control.Serve(ctx, ln)

	return mon.Run(ctx)
}

func runProcess(parent context.Context, studyKey string) error {
	log := logging.New()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	status, err := statusstore.NewMongoStore(ctx, cfg.Mongo.URI, cfg.Mongo.Database, logging.Module(log, "statusstore"))
	if err != nil {
		return fmt.Errorf("document store unreachable: %w", err)
	}
	defer status.Close(context.Background())

	oracle, err := relational.NewOracleStore(cfg.Oracle)
	if err != nil {
		return fmt.Errorf("relational database unreachable: %w", err)
	}
	defer oracle.Close()
	if err := oracle.Ping(ctx); err != nil {
		return fmt.Errorf("relational database unreachable: %w", err)
	}

	orch, err := buildOrchestrator(ctx, cfg, oracle, status, log)
	if err != nil {
		return err
	}

	if err := status.UpsertStatus(ctx, studyKey, statusstore.StatusUpdate{
		Status: statusstore.StatusReceived,
	}); err != nil {
		log.WithError(err).Error("failed to record received status")
	}
	return orch.Process(ctx, studyKey)
}

func runSpool(parent context.Context) error {
	log := logging.New()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.ResolveAPIKey() == "" {
		return fmt.Errorf("transcription API key is not configured")
	}

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tr, err := newTranscriber(ctx, cfg, log)
	if err != nil {
		return err
	}

	var encoder srencoder.Encoder
	if cfg.Report.EncapsulateEnhancedSR {
		encoder = srencoder.NewEnhancedSR(cfg.Report.SROutputFolder, logging.Module(log, "srencoder"))
	}

	w := spool.NewWatcher(
		cfg.Spool.Folder,
		cfg.Spool.ProcessedFolder,
		audio.NewExtractor(logging.Module(log, "audio")),
		tr,
		encoder,
		statusstore.NewMemoryStore(),
		logging.Module(log, "spool"),
	)
	return w.Run(ctx)
}

func runDashboard(parent context.Context) error {
	log := logging.New()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	status, err := statusstore.NewMongoStore(ctx, cfg.Mongo.URI, cfg.Mongo.Database, logging.Module(log, "statusstore"))
	if err != nil {
		return fmt.Errorf("document store unreachable: %w", err)
	}
	defer status.Close(context.Background())

	srv := dashboard.NewServer(status, cfg.Dashboard.Listen, logging.Module(log, "dashboard"))
	return srv.Run(ctx)
}

// buildOrchestrator wires the full pipeline from configuration.
func buildOrchestrator(
	ctx context.Context,
	cfg *config.Config,
	oracle relational.Store,
	status statusstore.Store,
	log *logrus.Logger,
) (*pipeline.Orchestrator, error) {
	tr, err := newTranscriber(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	var encoder srencoder.Encoder
	if cfg.Report.EncapsulateEnhancedSR {
		encoder = srencoder.NewEnhancedSR(cfg.Report.SROutputFolder, logging.Module(log, "srencoder"))
	}

	var writer pipeline.ReportWriter
	if cfg.Report.StoreTranscribedReport {
		writer = legacy.NewWriter(cfg.Oracle, cfg.Report.DictateDocKey, logging.Module(log, "legacy"))
	}

	return pipeline.New(
		locator.New(oracle, cfg.Oracle.Host, logging.Module(log, "locator")),
		share.NewSMBConnector(logging.Module(log, "share")),
		audio.NewExtractor(logging.Module(log, "audio")),
		tr,
		status,
		encoder,
		writer,
		pipeline.Options{
			EncapsulateSR:     cfg.Report.EncapsulateEnhancedSR,
			StoreLegacyReport: cfg.Report.StoreTranscribedReport,
			PrintOutput:       cfg.Transcription.PrintOutput,
			ShareCreds: share.Credentials{
				Username: cfg.Share.Username,
				Password: cfg.Share.Password,
				Domain:   cfg.Share.Domain,
			},
		},
		logging.Module(log, "pipeline"),
	), nil
}

func newTranscriber(ctx context.Context, cfg *config.Config, log *logrus.Logger) (transcriber.Transcriber, error) {
	tr, err := transcriber.New(ctx, transcriber.Config{
		Provider: cfg.Transcription.Provider,
		APIKey:   cfg.ResolveAPIKey(),
		Model:    cfg.Transcription.Model,
	}, logging.Module(log, "transcriber"))
	if err != nil {
		return nil, fmt.Errorf("create transcriber: %w", err)
	}
	return transcriber.WithTimeout(tr, cfg.Transcription.Timeout), nil
}
