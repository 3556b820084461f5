package main

import (
	"context"
	"os"
	"time"

	"shiftcheck/internal/app"
	"shiftcheck/internal/bootstrap"
	"shiftcheck/internal/shared/apperror"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	apperror.Init()
	r := gin.Default()

	application, err := app.BuildApp(r)
	if err != nil {
		logger.Fatal("build app failed", zap.Error(err))
	}

	// The drainer shares the process so a single binary covers the whole
	// device: HTTP surface plus background sync.
	drainCtx, stopDrainer := context.WithCancel(context.Background())
	defer stopDrainer()
	go application.Drainer.Run(drainCtx)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}
	bootstrap.StartHTTPServer(
		r,
		bootstrap.ServerConfig{
			Port:         port,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		application.Audits,
	)
}
