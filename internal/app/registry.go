package app

import (
	"database/sql"
	"fmt"
	"os"

	"shiftcheck/internal/audit"
	"shiftcheck/internal/device"
	"shiftcheck/internal/middleware"
	"shiftcheck/internal/outbox"
	"shiftcheck/internal/pinauth"
	"shiftcheck/internal/rbac"
	"shiftcheck/internal/session"
	"shiftcheck/internal/settings"
	"shiftcheck/internal/shared/clock"
	"shiftcheck/internal/staff"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

func registerModules(
	router *gin.Engine,
	gormDB *gorm.DB,
	db *sql.DB,
	deviceCfg *device.Config,
	clk clock.Clock,
) (*outbox.Drainer, audit.Service, error) {
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, nil, fmt.Errorf("JWT_SECRET is required")
	}

	// --- Repositories ---
	auditRepo := audit.NewRepository(gormDB)
	staffRepo := staff.NewRepository(gormDB)
	sessionRepo := session.NewRepository(db)
	outboxRepo := outbox.NewRepository(db)

	// --- Mirror clients ---
	sheetsClient, err := buildSheetsClient()
	if err != nil {
		return nil, nil, err
	}
	driveClient, err := buildDriveClient()
	if err != nil {
		return nil, nil, err
	}

	// --- RBAC Core ---
	enforcer, err := rbac.NewEnforcer()
	if err != nil {
		return nil, nil, err
	}
	managerAuth := middleware.ManagerAuth([]byte(jwtSecret))
	// managerOnly chains token validation with the policy check for one
	// resource/action pair.
	managerOnly := func(resource, action string) gin.HandlerFunc {
		authorize := rbac.Authorize(enforcer, resource, action)
		return func(c *gin.Context) {
			managerAuth(c)
			if c.IsAborted() {
				return
			}
			authorize(c)
		}
	}

	// --- Services ---
	auditService := audit.NewService(auditRepo, deviceCfg.DeviceID, clk, nil)
	settingsService := settings.NewService(gormDB)
	staffService := staff.NewService(staffRepo, auditService, clk, nil)
	tokenIssuer := pinauth.NewTokenIssuer(jwtSecret)
	pinService := pinauth.NewService(staffRepo, deviceCfg.Salt, tokenIssuer, auditService, clk, nil)
	sessionService := session.NewService(
		db, sessionRepo, outboxRepo, staffRepo,
		pinService, settingsService, auditService,
		deviceCfg.DeviceID, clk, nil,
	)
	checklistStore := session.NewChecklistStore(sessionRepo)
	outboxService := outbox.NewService(db, outboxRepo, checklistStore, auditService, clk, nil)

	// --- Handlers ---
	auditHandler := audit.NewHandler(auditService)
	settingsHandler := settings.NewHandler(settingsService)
	staffHandler := staff.NewHandler(staffService)
	pinHandler := pinauth.NewHandler(pinService)
	sessionHandler := session.NewHandler(sessionService)
	outboxHandler := outbox.NewHandler(outboxService)

	// --- Routes ---
	api := router.Group("/api/v1")
	{
		pinauth.RegisterRoutes(api, pinHandler, middleware.RateLimitByIP(rate.Limit(2), 5))
		session.RegisterRoutes(api, sessionHandler, managerOnly("session", "force_close"))
		staff.RegisterRoutes(api, staffHandler, managerOnly("staff", "write"))
		outbox.RegisterRoutes(api, outboxHandler, managerOnly("sync", "retry"))
		settings.RegisterRoutes(api, settingsHandler, managerOnly("settings", "write"))
		audit.RegisterRoutes(api, auditHandler, managerOnly("audit", "read"))
	}

	// --- Sync pipeline ---
	pipeline := outbox.NewPipeline(outboxRepo, sheetsClient, driveClient, checklistStore, clk, nil)
	idlePoll, activePoll := pollIntervals(gormDB)
	drainer := outbox.NewDrainer(outboxRepo, pipeline, clk, idlePoll, activePoll)

	return drainer, auditService, nil
}
