package server

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, int64(10<<20), cfg.MaxRequestBodySize)
}

func TestServer_MaxRequestBodySize(t *testing.T) {
	t.Parallel()

	s := New(&Config{MaxRequestBodySize: 8}, zap.NewNop())
	s.Engine().POST("/echo", func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Data(http.StatusOK, "text/plain", body)
	})

	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("short")))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "short", w.Body.String())

	w = httptest.NewRecorder()
	s.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", bytes.NewReader(make([]byte, 64))))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestServer_Use(t *testing.T) {
	t.Parallel()

	s := New(nil, nil)
	s.Use(func(c *gin.Context) {
		c.Header("X-Chain", "on")
		c.Next()
	})
	s.Engine().GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "on", w.Header().Get("X-Chain"))
}

func TestServer_StartStop(t *testing.T) {
	t.Parallel()

	s := New(&Config{Address: "127.0.0.1", Port: 0}, zap.NewNop())
	s.Engine().GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(t.Context()) }()

	require.Eventually(t, func() bool { return s.Addr() != "" }, 5*time.Second, 10*time.Millisecond)
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(t.Context()), ErrAlreadyRunning)

	resp, err := http.Get("http://" + s.Addr() + "/ping")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "pong", string(body))

	require.NoError(t, s.Stop(t.Context()))
	assert.NoError(t, <-errCh)
	assert.False(t, s.IsRunning())
	assert.NoError(t, s.Stop(t.Context()))
}

func TestServer_StartListenError(t *testing.T) {
	t.Parallel()

	s := New(&Config{Address: "256.0.0.1", Port: 1}, zap.NewNop())
	assert.Error(t, s.Start(t.Context()))
	assert.False(t, s.IsRunning())
}
