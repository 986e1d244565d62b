package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/insight/internal/reportindex"
	"github.com/mohammad-safakhou/insight/internal/research"
	"github.com/mohammad-safakhou/insight/internal/store"
)

// ResearchHandler exposes the research lifecycle: start a run, list and
// inspect sessions, fetch reports and search across them.
type ResearchHandler struct {
	Runner    *Runner
	Sessions  *store.SessionStore
	Snapshots *store.SnapshotStore
	Index     *reportindex.Index
}

type ResearchRequest struct {
	Query  string `json:"query"`
	Engine string `json:"engine"`
}

func (h *ResearchHandler) Register(g *echo.Group, secret []byte) {
	auth := AuthMiddleware(secret)
	g.POST("/research", h.start, auth)
	g.GET("/engines", h.engines, auth)
	g.GET("/sessions", h.list, auth)
	g.GET("/sessions/:id", h.get, auth)
	g.GET("/sessions/:id/report", h.report, auth)
	g.POST("/sessions/:id/resume", h.resume, auth)
	g.GET("/reports/search", h.search, auth)
}

func (h *ResearchHandler) start(c echo.Context) error {
	var req ResearchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}
	if _, err := h.Runner.Engine(req.Engine); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	id := uuid.NewString()
	go func() {
		_, _ = h.Runner.Run(context.Background(), req.Engine, id, req.Query)
	}()
	return c.JSON(http.StatusAccepted, map[string]string{"session_id": id})
}

func (h *ResearchHandler) engines(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"engines": h.Runner.Engines()})
}

func (h *ResearchHandler) list(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	sessions, err := h.Sessions.ListSessions(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"sessions": sessions})
}

func (h *ResearchHandler) get(c echo.Context) error {
	sess, err := h.load(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "session not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *ResearchHandler) report(c echo.Context) error {
	sess, err := h.load(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "session not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if sess.Status != research.StatusCompleted {
		return echo.NewHTTPError(http.StatusConflict, "session not completed")
	}
	return c.Blob(http.StatusOK, "text/markdown; charset=utf-8", []byte(sess.FinalReport))
}

func (h *ResearchHandler) resume(c echo.Context) error {
	sess, err := h.load(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "session not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if sess.Status == research.StatusCompleted {
		return echo.NewHTTPError(http.StatusConflict, "session already completed")
	}
	engine := c.QueryParam("engine")
	if _, err := h.Runner.Engine(engine); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	go func() {
		_ = h.Runner.Resume(context.Background(), engine, sess)
	}()
	return c.JSON(http.StatusAccepted, map[string]string{"session_id": sess.ID})
}

func (h *ResearchHandler) search(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q is required")
	}
	k, _ := strconv.Atoi(c.QueryParam("k"))
	if k <= 0 {
		k = 10
	}
	hits, err := h.Index.Search(q, k)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"hits": hits})
}

// load prefers the Redis snapshot when one exists and falls back to
// Postgres, so in-flight sessions are visible mid-run.
func (h *ResearchHandler) load(ctx context.Context, id string) (*research.Session, error) {
	if h.Snapshots != nil {
		if sess, err := h.Snapshots.GetSession(ctx, id); err == nil {
			return sess, nil
		}
	}
	return h.Sessions.GetSession(ctx, id)
}
