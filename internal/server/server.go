package server

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/mohammad-safakhou/insight/config"
	"github.com/mohammad-safakhou/insight/internal/llm"
	"github.com/mohammad-safakhou/insight/internal/reportindex"
	"github.com/mohammad-safakhou/insight/internal/research"
	"github.com/mohammad-safakhou/insight/internal/retry"
	"github.com/mohammad-safakhou/insight/internal/store"
	"github.com/mohammad-safakhou/insight/internal/telemetry"
	"github.com/mohammad-safakhou/insight/internal/tools"
	"github.com/mohammad-safakhou/insight/internal/trainingdata"
	"github.com/mohammad-safakhou/insight/internal/websearch"
)

// Run wires the full application and serves the HTTP API until the listener
// fails. It is the single DI point: config, Postgres, Redis, the research
// engines, the report index and the scheduler are all built here.
func Run(addr string, cfgPath string) error {
	cfg := config.LoadConfig(cfgPath)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	httpLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		httpLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie", "Authorization"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })

	metrics := telemetry.New()
	if cfg.Telemetry.Enabled {
		e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	}

	ctx := context.Background()
	if err := Migrate("file://migrations", cfg.Storage.Postgres.DSN(), "up", 0); err != nil {
		log.Printf("[SERVER] migrate: %v", err)
	}

	db, err := store.Open(ctx, cfg.Storage.Postgres)
	if err != nil {
		return err
	}
	sessions := store.NewSessionStore(db)

	var snapshots *store.SnapshotStore
	if cfg.Storage.Redis.Host != "" {
		rdb, err := store.Connect(ctx, cfg.Storage.Redis)
		if err != nil {
			return fmt.Errorf("redis connection failed (%s): %w", cfg.Storage.Redis.Addr(), err)
		}
		snapshots = store.NewSnapshotStore(rdb, cfg.Storage.Redis)
	}

	files, err := store.NewFileStore(cfg.Storage.File)
	if err != nil {
		return err
	}
	index, err := reportindex.New()
	if err != nil {
		return err
	}
	if err := warmIndex(ctx, sessions, index); err != nil {
		log.Printf("[SERVER] index warmup: %v", err)
	}

	runner := BuildRunner(cfg, db, sessions, snapshots, files, index, metrics)

	secret := cfg.Server.JWTSecret
	if secret == "" {
		return fmt.Errorf("jwt secret not configured (server.jwt_secret)")
	}
	auth := &AuthHandler{Store: sessions, Secret: []byte(secret)}

	api := e.Group("/api")
	auth.Register(api.Group("/auth"))

	rh := &ResearchHandler{Runner: runner, Sessions: sessions, Snapshots: snapshots, Index: index}
	rh.Register(api, auth.Secret)

	if err := ValidateSchedules(cfg.Schedules); err != nil {
		return fmt.Errorf("schedules: %w", err)
	}
	sched := &Scheduler{Runner: runner, Schedules: cfg.Schedules, Stop: make(chan struct{}),
		Logger: log.New(log.Writer(), "[SCHED] ", log.LstdFlags)}
	sched.Start()

	if addr == "" {
		addr = cfg.Server.Address
		if addr == "" {
			addr = ":10001"
		}
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}

// BuildRunner assembles one research pipeline per engine. The training
// engine is always available; the web engine only when a Brave key is set.
func BuildRunner(cfg *config.Config, db *sql.DB, sessions *store.SessionStore,
	snapshots *store.SnapshotStore, files *store.FileStore, index *reportindex.Index,
	metrics *telemetry.Metrics) *Runner {

	base := llm.New(cfg.LLM)
	report := base
	if cfg.LLM.ReportModel != "" && cfg.LLM.ReportModel != cfg.LLM.Model {
		report = base.WithModel(cfg.LLM.ReportModel)
	}

	saver := &dualSaver{pg: sessions, snap: snapshots}
	toolPolicy := retry.FromConfig(cfg.Retry, tools.Transient)
	engineLogger := log.New(log.Writer(), "", log.LstdFlags)
	toolLogger := log.New(log.Writer(), "", log.LstdFlags)

	engines := map[string]*research.Pipeline{}

	trainingReg := trainingdata.Registry(trainingdata.NewStore(db), cfg.Tools)
	engines[EngineTraining] = research.NewPipeline(research.PipelineOptions{
		Client:       base,
		ReportClient: report,
		Dispatcher:   tools.NewDispatcher(trainingReg, toolPolicy, metrics, toolLogger),
		Prompts:      research.TrainingAnalysis(trainingReg.Describe()),
		Research:     cfg.Research,
		Retry:        cfg.Retry,
		Saver:        saver,
		Metrics:      metrics,
		Logger:       engineLogger,
	})

	if cfg.Sources.WebSearch.BraveAPIKey != "" {
		webReg := websearch.Registry(websearch.NewBrave(cfg.Sources.WebSearch), cfg.Sources.WebSearch.MaxResults)
		engines[EngineWeb] = research.NewPipeline(research.PipelineOptions{
			Client:       base,
			ReportClient: report,
			Dispatcher:   tools.NewDispatcher(webReg, toolPolicy, metrics, toolLogger),
			Prompts:      research.WebResearch(webReg.Describe()),
			Research:     cfg.Research,
			Retry:        cfg.Retry,
			Saver:        saver,
			Metrics:      metrics,
			Logger:       engineLogger,
		})
	}

	runner := NewRunner(engines, EngineTraining, files, index,
		log.New(log.Writer(), "[RUNNER] ", log.LstdFlags))
	runner.Metrics = metrics
	return runner
}

// warmIndex reloads completed sessions into the in-memory report index so
// report search survives restarts.
func warmIndex(ctx context.Context, sessions *store.SessionStore, index *reportindex.Index) error {
	summaries, err := sessions.ListSessions(ctx, 200)
	if err != nil {
		return err
	}
	for _, sm := range summaries {
		if sm.Status != string(research.StatusCompleted) {
			continue
		}
		sess, err := sessions.GetSession(ctx, sm.ID)
		if err != nil {
			continue
		}
		_ = index.Add(sess)
	}
	return nil
}

// dualSaver persists to Postgres and mirrors a best-effort snapshot into
// Redis. A failed snapshot never fails the save.
type dualSaver struct {
	pg   *store.SessionStore
	snap *store.SnapshotStore
}

func (d *dualSaver) SaveSession(ctx context.Context, sess *research.Session) error {
	if err := d.pg.SaveSession(ctx, sess); err != nil {
		return err
	}
	if d.snap != nil {
		_ = d.snap.SaveSession(ctx, sess)
	}
	return nil
}
