package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"shiftcheck/internal/audit"
	"shiftcheck/internal/outbox"
	"shiftcheck/internal/session"

	"go.uber.org/zap"
)

// RunWorker drives the sync outbox as a standalone process. The default
// deployment runs the drainer inside the API process; this entry point exists
// for setups that want the sync loop isolated from the HTTP surface.
func RunWorker() error {
	logger := zap.L().Named("app.worker")

	gormDB, db, deviceCfg, clk, err := connectAndMigrate()
	if err != nil {
		return err
	}
	defer db.Close()

	sheetsClient, err := buildSheetsClient()
	if err != nil {
		return err
	}
	driveClient, err := buildDriveClient()
	if err != nil {
		return err
	}

	sessionRepo := session.NewRepository(db)
	outboxRepo := outbox.NewRepository(db)
	auditService := audit.NewService(audit.NewRepository(gormDB), deviceCfg.DeviceID, clk, nil)
	checklistStore := session.NewChecklistStore(sessionRepo)

	pipeline := outbox.NewPipeline(outboxRepo, sheetsClient, driveClient, checklistStore, clk, nil)
	idlePoll, activePoll := pollIntervals(gormDB)
	drainer := outbox.NewDrainer(outboxRepo, pipeline, clk, idlePoll, activePoll)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go drainer.Run(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("worker shutting down", zap.String("signal", sig.String()))
	auditService.Record(ctx, audit.ActionServerShutdown, "worker", deviceCfg.DeviceID, "system", map[string]any{
		"signal": sig.String(),
	})
	cancel()

	return nil
}
