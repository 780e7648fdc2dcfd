package main

import (
	"context"

	api "schoolcomms-backend/cmd/api"
	checklistUsecase "schoolcomms-backend/internal/checklist/usecase"
	"schoolcomms-backend/internal/comm/repository"
	"schoolcomms-backend/internal/database"
	"schoolcomms-backend/internal/metrics"
	"schoolcomms-backend/internal/scheduler"
	summaryUsecase "schoolcomms-backend/internal/summary/usecase"
	syncUsecase "schoolcomms-backend/internal/sync/usecase"
	"schoolcomms-backend/pkg/ai"
	"schoolcomms-backend/pkg/childcare"
	"schoolcomms-backend/pkg/config"
	"schoolcomms-backend/pkg/credentials"
	"schoolcomms-backend/pkg/gmail"
	"schoolcomms-backend/pkg/imapmail"
	"schoolcomms-backend/pkg/logging"
	"schoolcomms-backend/pkg/messaging"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	db, err := database.OpenSQLite(cfg.DatabasePath, logger)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}

	store, err := credentials.NewStore(cfg.CredentialsPath, cfg.CredentialsKey)
	if err != nil {
		logger.Fatal("failed to open credentials store", zap.Error(err))
	}

	commRepo := repository.NewCommunicationRepository(db)
	stateRepo := repository.NewSyncStateRepository(db)
	summaryRepo := repository.NewDailySummaryRepository(db)
	checklistRepo := repository.NewChecklistRepository(db)

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)

	// Adapters degrade individually: a misconfigured source logs a warning
	// here and fails only its own sync pass later.
	var mail syncUsecase.MailProvider
	if err := cfg.ValidateMail(); err != nil {
		logger.Warn("mail sync disabled", zap.Error(err))
	} else if cfg.MailTransport == "imap" {
		mail = imapmail.NewService(cfg.IMAPServer, cfg.IMAPPort, cfg.IMAPUsername, cfg.IMAPPassword, int(cfg.MailPageSize))
	} else {
		query := gmail.BuildQuery(cfg.MailQueryDomains, cfg.MailQueryKeywords)
		mail = gmail.NewService(cfg.GoogleClientID, cfg.GoogleClientSecret, query, cfg.MailPageSize, store)
		logger.Info("gmail query built", zap.String("query", query))
	}

	var childcareClient *childcare.Client
	var opener syncUsecase.AttachmentOpener
	var childcareProvider syncUsecase.ChildcareProvider
	if err := cfg.ValidateChildcare(); err != nil {
		logger.Warn("childcare sync disabled", zap.Error(err))
	} else {
		childcareClient = childcare.NewClient(cfg.ChildcareBaseURL, cfg.ChildcarePageSize, store)
		childcareProvider = childcareClient
		opener = childcareClient
	}

	var scraper messaging.Scraper
	if cfg.MessagingBridgeURL == "" {
		logger.Warn("messaging sync disabled: MESSAGING_BRIDGE_URL not set")
	} else {
		scraper = messaging.NewBridgeClient(cfg.MessagingBridgeURL)
	}

	var completer ai.Completer
	if err := cfg.ValidateAI(); err != nil {
		logger.Warn("summaries disabled", zap.Error(err))
	} else {
		completer, err = ai.NewCompleter(ai.Config{
			Provider:      ai.ProviderAuto,
			GeminiAPIKey:  cfg.GeminiAPIKey,
			GeminiModel:   cfg.GeminiModel,
			OllamaBaseURL: cfg.OllamaBaseURL,
			OllamaModel:   cfg.OllamaModel,
		}, logger)
		if err != nil {
			logger.Warn("summaries disabled", zap.Error(err))
		}
	}

	syncUc := syncUsecase.NewSyncUsecase(db, commRepo, stateRepo, mail, childcareProvider, scraper, store, opener, syncUsecase.Config{
		AttachmentsDir:    cfg.AttachmentsDir,
		PDFMaxBytes:       cfg.PDFMaxBytes,
		MailMaxPages:      cfg.MailMaxPages,
		ChildcareMaxPages: cfg.ChildcareMaxPages,
	}, m, logger)

	checklistUc := checklistUsecase.NewChecklistUsecase(db, checklistRepo, m, logger)

	summaryUc := summaryUsecase.NewSummaryUsecase(db, commRepo, summaryRepo, completer, checklistUc, summaryUsecase.Config{
		RollingDays:    cfg.RollingDays,
		StudentContext: cfg.StudentContext,
	}, m, logger)

	syncGuard := &scheduler.Guard{}
	sumGuard := &scheduler.Guard{}
	tracker := scheduler.NewTracker()
	syncUc.SetProgressFunc(func(line string) {
		tracker.Progress(scheduler.JobSync, line)
	})

	handler := api.NewHandler(cfg, syncUc, summaryUc, checklistUc, commRepo, syncGuard, sumGuard, tracker, logger)

	sched := scheduler.NewScheduler(cfg.SyncCron, cfg.SummaryCron, scheduler.Jobs{
		Sync: func(ctx context.Context) {
			if !handler.SyncJob(ctx, nil) {
				logger.Info("scheduled sync skipped, previous run still in flight")
			}
		},
		Summaries: func(ctx context.Context) {
			if !handler.SummaryJob(ctx, 0, false) {
				logger.Info("scheduled summary run skipped, previous run still in flight")
			}
		},
	}, logger)
	if err := sched.Start(); err != nil {
		logger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	logger.Info("server starting", zap.String("port", cfg.Port))
	if err := handler.Start(":" + cfg.Port); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}
