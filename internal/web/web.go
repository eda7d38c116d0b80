// Package web serves the counter page and a small JSON API over gin.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ryhazerus/tally"
	"github.com/ryhazerus/tally/store"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templates embed.FS

// Counters is the counter API the handlers depend on. *tally.Service
// implements it.
type Counters interface {
	GetOrCreate(ctx context.Context, name string) (store.Counter, error)
	Value(ctx context.Context, name string) (int64, error)
	Increment(ctx context.Context, name string) (int64, error)
	Reset(ctx context.Context, name string) (int64, error)
}

var _ Counters = (*tally.Service)(nil)

// Options configures the router.
type Options struct {
	// DefaultCounter is the counter shown at "/".
	DefaultCounter string
	Logger         *zap.Logger
	// Gatherer, when set, is exposed at /metrics.
	Gatherer prometheus.Gatherer
}

type handler struct {
	counters Counters
	logger   *zap.Logger
}

// page is the data rendered by counter.html.
type page struct {
	Name       string
	Value      int64
	NoValue    bool // the counter could not be read
	Notice     string
	NoticeKind string // positive, info or negative
}

// NewRouter returns a gin engine serving the counter page, the JSON API,
// /healthz and, optionally, /metrics.
func NewRouter(counters Counters, opts Options) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	h := &handler{counters: counters, logger: opts.Logger}

	r := gin.New()
	r.UseRawPath = true
	r.Use(requestLogger(opts.Logger), gin.Recovery())

	tmpl := template.Must(template.New("").Funcs(template.FuncMap{
		"pathEscape": url.PathEscape,
	}).ParseFS(templates, "templates/*.html"))
	r.SetHTMLTemplate(tmpl)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	r.GET("/", func(c *gin.Context) {
		h.showPage(c, opts.DefaultCounter)
	})
	r.GET("/counters/:name", func(c *gin.Context) {
		h.showPage(c, c.Param("name"))
	})
	r.POST("/counters/:name/increment", h.incrementPage)
	r.POST("/counters/:name/reset", h.resetPage)

	api := r.Group("/api/counters")
	{
		api.GET("/:name", h.getCounter)
		api.POST("/:name/increment", h.incrementCounter)
		api.POST("/:name/reset", h.resetCounter)
	}

	return r
}

func (h *handler) showPage(c *gin.Context, name string) {
	value, err := h.counters.Value(c.Request.Context(), name)
	if err != nil {
		h.renderError(c, name, err)
		return
	}
	c.HTML(http.StatusOK, "counter.html", page{Name: name, Value: value})
}

func (h *handler) incrementPage(c *gin.Context) {
	name := c.Param("name")
	value, err := h.counters.Increment(c.Request.Context(), name)
	if err != nil {
		h.renderError(c, name, err)
		return
	}
	c.HTML(http.StatusOK, "counter.html", page{
		Name:       name,
		Value:      value,
		Notice:     fmt.Sprintf("Counter incremented to %d!", value),
		NoticeKind: "positive",
	})
}

func (h *handler) resetPage(c *gin.Context) {
	name := c.Param("name")
	value, err := h.counters.Reset(c.Request.Context(), name)
	if err != nil {
		h.renderError(c, name, err)
		return
	}
	c.HTML(http.StatusOK, "counter.html", page{
		Name:       name,
		Value:      value,
		Notice:     fmt.Sprintf("Counter reset to %d!", value),
		NoticeKind: "info",
	})
}

func (h *handler) renderError(c *gin.Context, name string, err error) {
	status, msg := h.classify(err)
	c.HTML(status, "counter.html", page{
		Name:       name,
		NoValue:    true,
		Notice:     msg,
		NoticeKind: "negative",
	})
}

type counterResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Value     int64     `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type valueResponse struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

func (h *handler) getCounter(c *gin.Context) {
	counter, err := h.counters.GetOrCreate(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.jsonError(c, err)
		return
	}
	c.JSON(http.StatusOK, counterResponse{
		ID:        counter.ID,
		Name:      counter.Name,
		Value:     counter.Value,
		CreatedAt: counter.CreatedAt,
		UpdatedAt: counter.UpdatedAt,
	})
}

func (h *handler) incrementCounter(c *gin.Context) {
	h.mutate(c, h.counters.Increment)
}

func (h *handler) resetCounter(c *gin.Context) {
	h.mutate(c, h.counters.Reset)
}

func (h *handler) mutate(c *gin.Context, op func(context.Context, string) (int64, error)) {
	name := c.Param("name")
	value, err := op(c.Request.Context(), name)
	if err != nil {
		h.jsonError(c, err)
		return
	}
	c.JSON(http.StatusOK, valueResponse{Name: name, Value: value})
}

func (h *handler) jsonError(c *gin.Context, err error) {
	status, msg := h.classify(err)
	c.JSON(status, gin.H{"error": msg})
}

// classify maps an error to a status code and a message safe to show.
func (h *handler) classify(err error) (int, string) {
	if errors.Is(err, tally.ErrInvalidName) {
		return http.StatusBadRequest, err.Error()
	}
	h.logger.Error("request failed", zap.Error(err))
	return http.StatusInternalServerError, "Something went wrong. Please try again."
}

// requestLogger logs one line per request.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}
