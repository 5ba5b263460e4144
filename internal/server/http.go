package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/abstracta/skywalking-copilot/internal/agent"
	"github.com/abstracta/skywalking-copilot/internal/render"
	"github.com/abstracta/skywalking-copilot/internal/session/domain"
	"github.com/abstracta/skywalking-copilot/internal/session/repository"
)

// Assistant answers questions within a session conversation.
type Assistant interface {
	StartSession(ctx context.Context, sessionID string, locales []string) error
	Ask(ctx context.Context, sessionID, question string, onToken agent.TokenFunc) (string, error)
}

// Summarizer builds interaction summaries.
type Summarizer interface {
	SummarizeTraces(ctx context.Context, traceIDs []string) (string, error)
	SummarizeNewAlarms(ctx context.Context, sessionID string) (string, error)
}

// Prober runs the readiness checks and returns failures by component.
type Prober interface {
	Probe(ctx context.Context) map[string]error
}

// HTTPConfig holds the values served by the public documents.
type HTTPConfig struct {
	ServiceName  string
	AppURL       string
	SupportEmail string
	AssetsDir    string
}

// Handler serves the copilot HTTP API.
type Handler struct {
	sessions     repository.Repository
	assistant    Assistant
	interactions Summarizer
	renderer     *render.Renderer
	health       Prober
	cfg          HTTPConfig
	logger       *zap.Logger
	now          func() time.Time
}

// NewHandler returns the HTTP API handler. health may be nil.
func NewHandler(sessions repository.Repository, assistant Assistant, interactions Summarizer, renderer *render.Renderer, health Prober, cfg HTTPConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		sessions:     sessions,
		assistant:    assistant,
		interactions: interactions,
		renderer:     renderer,
		health:       health,
		cfg:          cfg,
		logger:       logger.Named("http"),
		now:          time.Now,
	}
}

// NewRouter returns a gin engine with tracing, request logging and recovery, serving h.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(otelgin.Middleware(h.cfg.ServiceName))
	r.Use(requestLogger(h.logger))
	r.Use(gin.Recovery())
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers the API routes on r.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/manifest.json", h.manifest)
	r.GET("/logo.png", h.logo)
	r.GET("/healthz", h.healthz)
	sessions := r.Group("/sessions")
	sessions.POST("", h.createSession)
	sessions.POST("/:id/questions", h.answerQuestion)
	sessions.POST("/:id/interactions", h.recordInteraction)
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)))
	}
}

func (h *Handler) manifest(c *gin.Context) {
	body, err := h.renderer.Manifest(render.Manifest{AppURL: h.cfg.AppURL, SupportEmail: h.cfg.SupportEmail})
	if err != nil {
		h.internalError(c, "render manifest", err)
		return
	}
	c.Data(http.StatusOK, "application/json", body)
}

func (h *Handler) logo(c *gin.Context) {
	c.File(filepath.Join(h.cfg.AssetsDir, "logo.png"))
}

func (h *Handler) healthz(c *gin.Context) {
	if h.health == nil {
		c.JSON(http.StatusOK, gin.H{"status": "SERVING"})
		return
	}
	failures := h.health.Probe(c.Request.Context())
	if len(failures) == 0 {
		c.JSON(http.StatusOK, gin.H{"status": "SERVING"})
		return
	}
	details := make(map[string]string, len(failures))
	for name, err := range failures {
		details[name] = err.Error()
	}
	c.JSON(http.StatusServiceUnavailable, gin.H{"status": "NOT_SERVING", "failures": details})
}

type createSessionRequest struct {
	Locales []string `json:"locales" binding:"required,min=1"`
}

type sessionResponse struct {
	ID      string   `json:"id"`
	Locales []string `json:"locales"`
}

func (h *Handler) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	s := &domain.Session{ID: uuid.NewString(), Locales: req.Locales, CreatedAt: h.now().UTC()}
	if err := h.sessions.Create(ctx, s); err != nil {
		h.internalError(c, "create session", err)
		return
	}
	if err := h.assistant.StartSession(ctx, s.ID, s.Locales); err != nil {
		h.internalError(c, "start session", err)
		return
	}
	c.JSON(http.StatusCreated, sessionResponse{ID: s.ID, Locales: s.Locales})
}

// findSession writes 404 and returns nil when the session does not exist.
func (h *Handler) findSession(c *gin.Context) *domain.Session {
	s, err := h.sessions.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.internalError(c, "find session", err)
		return nil
	}
	if s == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return nil
	}
	return s
}

type questionRequest struct {
	Question string `json:"question" binding:"required"`
}

// answerQuestion streams the answer as server-sent events: one data event per token, or an error
// event when answering fails part way.
func (h *Handler) answerQuestion(c *gin.Context) {
	var req questionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s := h.findSession(c)
	if s == nil {
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	ctx := c.Request.Context()
	answer, err := h.assistant.Ask(ctx, s.ID, req.Question, func(token string) error {
		if err := writeEvent(c.Writer, "", token); err != nil {
			return err
		}
		c.Writer.Flush()
		return ctx.Err()
	})
	if err == nil {
		err = h.sessions.CreateQuestion(ctx, &domain.Question{
			ID:        uuid.NewString(),
			SessionID: s.ID,
			Question:  req.Question,
			Answer:    answer,
			CreatedAt: h.now().UTC(),
		})
	}
	if err != nil {
		if agent.IsCanceled(err) {
			h.logger.Info("question abandoned by client", zap.String("session_id", s.ID))
			return
		}
		h.logger.Error("problem answering question", zap.String("session_id", s.ID), zap.Error(err))
		_ = writeEvent(c.Writer, "error", "")
		c.Writer.Flush()
	}
}

// writeEvent writes one server-sent event. Data lines keep leading spaces, so tokens can be
// concatenated as received.
func writeEvent(w io.Writer, event, data string) error {
	var b strings.Builder
	if event != "" {
		b.WriteString("event: " + event + "\n")
	}
	data = strings.ReplaceAll(data, "\r\n", "\n")
	data = strings.ReplaceAll(data, "\r", "\n")
	for _, line := range strings.Split(data, "\n") {
		b.WriteString("data: " + line + "\n")
	}
	b.WriteString("\n")
	_, err := io.WriteString(w, b.String())
	return err
}

type capturedTrace struct {
	TraceID string `json:"traceId"`
}

type interactionResponse struct {
	Summary string `json:"summary"`
}

// recordInteraction summarizes the captured traces when the body lists any, and the new alarms of
// the session otherwise. An empty summary means there is nothing to report.
func (h *Handler) recordInteraction(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var traces []capturedTrace
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 {
		if err := json.Unmarshal(trimmed, &traces); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "body must be a list of {traceId}"})
			return
		}
	}
	s := h.findSession(c)
	if s == nil {
		return
	}

	var ids []string
	for _, t := range traces {
		if id := strings.TrimSpace(t.TraceID); id != "" {
			ids = append(ids, id)
		}
	}
	ctx := c.Request.Context()
	var summary string
	if len(ids) > 0 {
		summary, err = h.interactions.SummarizeTraces(ctx, ids)
	} else {
		summary, err = h.interactions.SummarizeNewAlarms(ctx, s.ID)
	}
	if err != nil {
		h.internalError(c, "summarize interaction", err)
		return
	}
	c.JSON(http.StatusOK, interactionResponse{Summary: summary})
}

func (h *Handler) internalError(c *gin.Context, op string, err error) {
	h.logger.Error(op, zap.String("route", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
