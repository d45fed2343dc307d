package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"noticeboard/internal/broadcast"
	"noticeboard/internal/db"
	"noticeboard/internal/notice"
	"noticeboard/internal/server"
	"noticeboard/internal/store"
	"noticeboard/internal/upload"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var serveCommand = &cli.Command{
	Name:   "serve",
	Usage:  "Start the HTTP server",
	Action: serve,
}

func serve(cCtx *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	config, err := loadConfig()
	if err != nil {
		return err
	}

	database, err := db.Open(ctx, config)
	if err != nil {
		return err
	}
	defer database.Close()

	userRepo := store.NewUserRepository(database)
	noticeRepo := store.NewNoticeRepository(database)

	uploader, err := upload.NewUploader(config.UploadDir)
	if err != nil {
		return err
	}

	hub := broadcast.NewHub(logger)

	noticeService := notice.New(logger, noticeRepo, uploader, hub)

	srv, err := server.New(
		config,
		logger,
		userRepo,
		noticeService,
		hub,
	)
	if err != nil {
		return err
	}

	go func() {
		logger.WithField("port", config.ServerPort).Infof("server starting http://localhost:%d", config.ServerPort)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Stop(shutdownCtx)
}
