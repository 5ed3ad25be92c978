package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/uptrace/bun"

	"github.com/mkoziy/habitat/ingest/internal/api"
	"github.com/mkoziy/habitat/ingest/internal/blobstore"
	"github.com/mkoziy/habitat/ingest/internal/capture"
	"github.com/mkoziy/habitat/ingest/internal/config"
	"github.com/mkoziy/habitat/ingest/internal/database"
	"github.com/mkoziy/habitat/ingest/internal/enrich/geocode"
	"github.com/mkoziy/habitat/ingest/internal/enrich/media"
	"github.com/mkoziy/habitat/ingest/internal/logging"
	"github.com/mkoziy/habitat/ingest/internal/pipeline"
	"github.com/mkoziy/habitat/ingest/internal/repositories"
	"github.com/mkoziy/habitat/ingest/internal/sources/centris"
	"github.com/mkoziy/habitat/ingest/internal/sources/facebook"
	"github.com/mkoziy/habitat/ingest/internal/sources/municipal"
	"github.com/mkoziy/habitat/ingest/internal/sources/registry"
	"github.com/mkoziy/habitat/ingest/internal/transform"
	"github.com/mkoziy/habitat/ingest/internal/zones"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	logger     *slog.Logger
	configErr  error

	appOnce sync.Once
	app     *app
	appErr  error
}

// app holds the components wired from the configuration.
type app struct {
	db       *bun.DB
	repo     *repositories.Repository
	recorder *capture.Recorder
	pipeline *pipeline.Orchestrator
	zones    *zones.Service
	server   *api.Server
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		logger, err := logging.New(cfg.Log)
		if err != nil {
			c.configErr = err
			return
		}
		c.config, c.logger = cfg, logger
	})
	return c.config, c.configErr
}

// ensureApp opens the database and wires every component once per process.
func (c *commandContext) ensureApp() (*app, error) {
	c.appOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.appErr = err
			return
		}
		c.app, c.appErr = wire(cfg, c.logger)
	})
	return c.app, c.appErr
}

func wire(cfg *config.Config, logger *slog.Logger) (*app, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	blobs, err := blobstore.NewFS(cfg.BlobDir())
	if err != nil {
		db.Close()
		return nil, err
	}
	matcher, err := cfg.Matcher()
	if err != nil {
		db.Close()
		return nil, err
	}

	repo := repositories.New(db)
	reg := transform.NewRegistry(facebook.New(), centris.New(), municipal.New(), registry.New())
	geoLimiter, geoPolicy := cfg.Limiter(config.ProviderGeocoder)
	mediaLimiter, mediaPolicy := cfg.Limiter(config.ProviderMedia)

	a := &app{db: db, repo: repo}
	a.recorder = capture.NewRecorder(blobs, repo, reg, logger)
	a.pipeline = pipeline.New(pipeline.Deps{
		Repo:     repo,
		Blobs:    blobs,
		Registry: reg,
		Geocoder: geocode.New(cfg.Geocoder, geoLimiter, geoPolicy, logger),
		Media:    media.New(blobs, cfg.Media, mediaLimiter, mediaPolicy, logger),
		Matcher:  matcher,
		Logger:   logger,
	}, cfg.Pipeline)
	a.zones = zones.New(repo, cfg.Zones, logger)
	a.server = api.New(a.recorder, a.pipeline, a.zones, logger)
	return a, nil
}

func (c *commandContext) close() error {
	if c.app == nil {
		return nil
	}
	err := c.app.db.Close()
	c.app = nil
	if err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
