package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"go-pos-engine/internal/audit"
	"go-pos-engine/internal/config"
	"go-pos-engine/internal/database"
	"go-pos-engine/internal/handlers"
	"go-pos-engine/internal/models"
)

func main() {
	app := &cli.App{
		Name:   "pos-engine",
		Usage:  "point of sale backend with the sale transaction engine",
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "start the HTTP API (default)",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "create or update the SQL schema",
				Action: migrate,
			},
			{
				Name:  "purge-audit",
				Usage: "delete every audit entry except the purge record",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "confirm", Usage: "exact confirmation phrase", Required: true},
				},
				Action: purgeAudit,
			},
			{
				Name:  "create-admin",
				Usage: "create an admin account",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Required: true},
					&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"ADMIN_PASSWORD"}},
				},
				Action: createAdmin,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("pos-engine exited")
	}
}

func setup(c *cli.Context) (*engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := config.NewLogger(cfg.Log)
	return buildEngine(c.Context, cfg, log)
}

func serve(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.Close()

	if e.cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handlers.NewRouter(e.handler, e.tokens, e.cfg)
	srv := &http.Server{Addr: e.cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		e.log.WithFields(logrus.Fields{
			"addr":     e.cfg.HTTPAddr,
			"base_url": e.cfg.BaseURL,
			"driver":   e.cfg.Database.Driver,
		}).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case err := <-errCh:
		return errors.Wrap(err, "listen")
	}
	e.log.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func migrate(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := config.NewLogger(cfg.Log)
	if cfg.Database.Driver == config.DriverMemory {
		return errors.New("memory driver has no schema to migrate")
	}
	db, err := database.Connect(cfg.Database, log)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return err
	}
	log.Info("schema migrated")
	return nil
}

func purgeAudit(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.Close()

	// the operator at the console stands in for an admin; user id 0 marks it
	deleted, err := e.recorder.PurgeAll(c.Context, audit.Actor{ID: 0, IsAdmin: true}, c.String("confirm"))
	if err != nil {
		return err
	}
	e.log.WithField("deleted", deleted).Info("audit log purged")
	return nil
}

func createAdmin(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.Close()

	user, err := e.handler.Auth.Register(c.Context, c.String("username"), c.String("password"), models.RoleAdmin)
	if err != nil {
		return err
	}
	e.log.WithFields(logrus.Fields{"user_id": user.ID, "username": user.Username}).Info("admin created")
	return nil
}
