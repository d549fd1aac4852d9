package gateway

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/readr-media/readr-bff/internal/config"
)

// traceNotFound is the body of /trace while tracing credentials are absent.
const traceNotFound = "404 | Not found."

// maxTraceEvent bounds a client trace event body.
const maxTraceEvent = 64 << 10

// Status answers true once the token has been verified.
func Status(c *gin.Context) {
	c.JSON(http.StatusOK, true)
}

// ModelCatalogue serves the models available to the calling host. The
// table can be swapped while serving.
type ModelCatalogue struct {
	table  atomic.Pointer[config.ModelTable]
	logger *zap.Logger
}

// NewModelCatalogue creates a catalogue over table.
func NewModelCatalogue(table config.ModelTable, logger *zap.Logger) *ModelCatalogue {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &ModelCatalogue{logger: logger}
	m.Set(table)
	return m
}

// Set replaces the table.
func (m *ModelCatalogue) Set(table config.ModelTable) {
	if table == nil {
		table = config.ModelTable{}
	}
	m.table.Store(&table)
}

// Lookup returns the models for identifier, never nil.
func (m *ModelCatalogue) Lookup(identifier string) []string {
	return m.table.Load().Lookup(identifier)
}

// Handle serves GET /available-ms.
func (m *ModelCatalogue) Handle(c *gin.Context) {
	identifier := Identifier(c.Request)
	m.logger.Info("going to give available models for host", zap.String("identifier", identifier))
	c.JSON(http.StatusOK, m.Lookup(identifier))
}

// Identifier names the caller for the model table: X-Forwarded-Host when
// present, else the request host, without port.
func Identifier(r *http.Request) string {
	host := r.Host
	if fwd := r.Header.Get("X-Forwarded-Host"); fwd != "" {
		host, _, _ = strings.Cut(fwd, ",")
		host = strings.TrimSpace(host)
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

type enewsGroup struct {
	GroupName string `json:"group_name"`
	Count     int    `json:"count"`
	UpdatedAt string `json:"updated_at"`
	CreatedAt string `json:"created_at"`
	ID        int    `json:"id"`
}

type enewsMember struct {
	Nickname  string `json:"nickname"`
	ID        int    `json:"id"`
	Mail      string `json:"mail"`
	Active    int    `json:"active"`
	UpdatedAt string `json:"updated_at"`
	CreatedAt string `json:"created_at"`
}

var (
	enewsGroups = []enewsGroup{
		{GroupName: "滄海一聲笑", Count: 222, UpdatedAt: "2018-10-19T03:37:11Z", CreatedAt: "2018-10-19T03:37:11Z", ID: 0},
		{GroupName: "智齒大王", Count: 32, UpdatedAt: "2018-10-20T03:37:11Z", CreatedAt: "2018-10-20T03:37:11Z", ID: 1},
	}
	enewsMembers = []enewsMember{
		{Nickname: "滄海一聲fasdff笑", ID: 222, Mail: "fasdf", Active: 1, UpdatedAt: "2018-10-19T03:37:11Z", CreatedAt: "2018-10-19T03:37:11Z"},
		{Nickname: "智asdff齒大王", ID: 32, Mail: "fasd22", Active: 0, UpdatedAt: "2018-10-20T03:37:11Z", CreatedAt: "2018-10-20T03:37:11Z"},
	}
)

// EnewsGroupList serves the newsletter group listing, or the members of a
// group when an id query parameter is given.
func EnewsGroupList(c *gin.Context) {
	if c.Query("id") == "" {
		c.JSON(http.StatusOK, gin.H{"_items": enewsGroups})
		return
	}
	c.JSON(http.StatusOK, gin.H{"_items": enewsMembers})
}

// TraceSink records client trace events as log entries.
type TraceSink struct {
	enabled bool
	logger  *zap.Logger
}

// NewTraceSink creates a sink for cfg. Events go to a logger named after
// the configured log name.
func NewTraceSink(cfg config.TraceConfig, logger *zap.Logger) *TraceSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TraceSink{
		enabled: cfg.Enabled(),
		logger: logger.Named(cfg.LogName).With(
			zap.String("project", cfg.ProjectID),
		),
	}
}

// Handle serves /trace.
func (t *TraceSink) Handle(c *gin.Context) {
	if !t.enabled || c.Request.Method != http.MethodPost {
		c.String(http.StatusNotFound, traceNotFound)
		return
	}

	var event map[string]any
	dec := json.NewDecoder(http.MaxBytesReader(c.Writer, c.Request.Body, maxTraceEvent))
	dec.UseNumber()
	if err := dec.Decode(&event); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":   "Bad Request",
			"message": "trace event must be a JSON object",
		})
		return
	}

	t.logger.Info("client trace",
		zap.String("path", c.Request.URL.Path),
		zap.String("clientIP", c.ClientIP()),
		zap.String("userAgent", c.Request.UserAgent()),
		zap.Any("event", event),
	)
	c.Status(http.StatusOK)
}
