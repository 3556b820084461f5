package app

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"time"

	"shiftcheck/internal/audit"
	"shiftcheck/internal/device"
	"shiftcheck/internal/middleware"
	"shiftcheck/internal/mirror"
	"shiftcheck/internal/outbox"
	"shiftcheck/internal/session"
	"shiftcheck/internal/settings"
	"shiftcheck/internal/shared/clock"
	"shiftcheck/internal/shared/connection"
	"shiftcheck/internal/staff"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App holds the wired application: HTTP routes registered on the router plus
// the background drainer the caller is expected to start.
type App struct {
	GormDB  *gorm.DB
	DB      *sql.DB
	Drainer *outbox.Drainer
	Audits  audit.Service
}

func BuildApp(router *gin.Engine) (*App, error) {
	gormDB, db, deviceCfg, clk, err := connectAndMigrate()
	if err != nil {
		return nil, err
	}

	router.Use(middleware.RequestID())

	drainer, audits, err := registerModules(router, gormDB, db, deviceCfg, clk)
	if err != nil {
		return nil, err
	}

	return &App{GormDB: gormDB, DB: db, Drainer: drainer, Audits: audits}, nil
}

func connectAndMigrate() (*gorm.DB, *sql.DB, *device.Config, clock.Clock, error) {
	path := os.Getenv("SQLITE_PATH")
	if path == "" {
		path = "shiftcheck.db"
	}

	gormDB, err := connection.ConnectSQLiteWithRetry(path, 5)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	zap.L().Info("database connection established", zap.String("path", path))

	if err := connection.Migrate(gormDB,
		&staff.Staff{},
		&session.Checklist{},
		&outbox.Submission{},
		&audit.Entry{},
		&device.Config{},
		&settings.Settings{},
	); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("migrate: %w", err)
	}

	db, err := gormDB.DB()
	if err != nil {
		return nil, nil, nil, nil, err
	}

	clk := clock.New()

	deviceCfg, err := device.NewService(gormDB).Ensure(context.Background(), os.Getenv("DEVICE_NAME"))
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("device config: %w", err)
	}
	zap.L().Info("device ready", zap.String("device_id", deviceCfg.DeviceID))

	return gormDB, db, deviceCfg, clk, nil
}

// buildSheetsClient picks the mirror transport: a remote bridge when
// MIRROR_BASE_URL is set, otherwise a local workbook for offline or
// single-site deployments.
func buildSheetsClient() (mirror.SheetsClient, error) {
	if base := os.Getenv("MIRROR_BASE_URL"); base != "" {
		return mirror.NewHTTPSheetsClient(base), nil
	}

	path := os.Getenv("MIRROR_XLSX_PATH")
	if path == "" {
		path = "mirror.xlsx"
	}
	return mirror.NewXLSXSheetsClient(path), nil
}

func buildDriveClient() (mirror.DriveClient, error) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		return nil, fmt.Errorf("MINIO_ENDPOINT is required")
	}

	client, err := mirror.NewMinioDriveClient(mirror.MinioConfig{
		Endpoint:  endpoint,
		AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		SecretKey: os.Getenv("MINIO_SECRET_KEY"),
		Bucket:    envOr("MINIO_BUCKET", "checklist-pdfs"),
		UseSSL:    os.Getenv("MINIO_USE_SSL") == "true",
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("minio bucket: %w", err)
	}
	return client, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// pollIntervals resolves the drainer cadence: env wins, then the stored
// settings, then the drainer's built-in defaults.
func pollIntervals(gormDB *gorm.DB) (time.Duration, time.Duration) {
	idle := envDuration("OUTBOX_IDLE_POLL", 0)
	active := envDuration("OUTBOX_ACTIVE_POLL", 0)
	if idle > 0 && active > 0 {
		return idle, active
	}

	if cfg, err := settings.NewService(gormDB).Get(context.Background()); err == nil {
		if idle <= 0 {
			idle = time.Duration(cfg.IdlePollSeconds) * time.Second
		}
		if active <= 0 {
			active = time.Duration(cfg.ActivePollSeconds) * time.Second
		}
	}
	return idle, active
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return fallback
}
