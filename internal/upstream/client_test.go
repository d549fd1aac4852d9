package upstream

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readr-media/readr-bff/internal/apierror"
)

type recordedCall struct {
	method, outcome string
}

type fakeMetrics struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (f *fakeMetrics) RecordUpstream(method, outcome string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedCall{method: method, outcome: outcome})
}

func newTestClient(t *testing.T, handler http.HandlerFunc, cfg Config, opts ...Option) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg.BaseURL = srv.URL + "/"
	client, err := New(cfg, opts...)
	require.NoError(t, err)
	return client
}

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrNoBaseURL)

	client, err := New(Config{BaseURL: "http://api:8080//"})
	require.NoError(t, err)
	assert.Equal(t, "http://api:8080/member/1?x=1", client.URL("/member/1?x=1"))
	assert.Equal(t, DefaultDeadline, client.deadline)
}

func TestBaseURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "http://api:80", BaseURL("", "api", 80))
	assert.Equal(t, "https://api.readr.tw:443", BaseURL("https", "api.readr.tw", 443))
}

func TestClient_Forward(t *testing.T) {
	t.Parallel()

	var gotMethod, gotPath, gotQuery, gotBody, gotType string
	metrics := &fakeMetrics{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath, gotQuery = r.Method, r.URL.Path, r.URL.RawQuery
		gotType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"b_key":2,"a_key":1}`)
	}, Config{}, WithMetrics(metrics))

	resp, err := client.Forward(context.Background(), http.MethodPut, "/report/42?sort=-id", []byte(`{"x":1}`))
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/report/42", gotPath)
	assert.Equal(t, "sort=-id", gotQuery)
	assert.Equal(t, `{"x":1}`, gotBody)
	assert.Equal(t, "application/json", gotType)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, `{"b_key":2,"a_key":1}`, string(resp.Body), "raw body, no casing transform")
	assert.Equal(t, []recordedCall{{method: http.MethodPut, outcome: OutcomeSuccess}}, metrics.calls)
}

func TestClient_Forward_StatusError(t *testing.T) {
	t.Parallel()

	metrics := &fakeMetrics{}
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, "Not Found")
	}, Config{}, WithMetrics(metrics))

	resp, err := client.Forward(context.Background(), http.MethodGet, "/missing", nil)
	require.Error(t, err)

	e := apierror.As(err)
	assert.Equal(t, apierror.KindUpstreamStatus, e.Kind)
	assert.Equal(t, http.StatusNotFound, e.Status)
	assert.Equal(t, "Not Found", e.Text)
	assert.Contains(t, e.URL, "/missing")
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.Equal(t, OutcomeStatusError, metrics.calls[0].outcome)
}

func TestClient_Forward_ResponseTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}, Config{ResponseTimeout: 50 * time.Millisecond, Deadline: 5 * time.Second})
	// Registered after the server so it runs before srv.Close.
	t.Cleanup(func() { close(release) })

	_, err := client.Forward(context.Background(), http.MethodGet, "/slow", nil)
	require.Error(t, err)

	e := apierror.As(err)
	assert.Equal(t, apierror.KindUpstreamTransport, e.Kind)
	assert.Equal(t, http.StatusGatewayTimeout, e.Status)
}

func TestClient_Forward_Deadline(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "[")
		w.(http.Flusher).Flush()
		<-release
	}, Config{ResponseTimeout: 5 * time.Second, Deadline: 100 * time.Millisecond})
	t.Cleanup(func() { close(release) })

	_, err := client.Forward(context.Background(), http.MethodGet, "/trickle", nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusGatewayTimeout, apierror.As(err).Status)
}

func TestClient_Forward_ConnectionRefused(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	baseURL := srv.URL
	srv.Close()

	client, err := New(Config{BaseURL: baseURL})
	require.NoError(t, err)

	_, err = client.Forward(context.Background(), http.MethodDelete, "/x", []byte(`{}`))
	require.Error(t, err)

	e := apierror.As(err)
	assert.Equal(t, apierror.KindUpstreamTransport, e.Kind)
	assert.Equal(t, http.StatusBadGateway, e.Status)
}

func TestClient_Fetch(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/member/7", r.URL.Path)
		_, _ = io.WriteString(w, `{"_items":[{"profile_image":"p.png","role":3}]}`)
	}, Config{})

	body, err := client.Fetch(context.Background(), "/member/7")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"items": []any{map[string]any{"profileImage": "p.png", "role": float64(3)}},
	}, body)
}

func TestClient_Fetch_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		handler  http.HandlerFunc
		wantKind apierror.Kind
	}{
		{
			name: "status",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			wantKind: apierror.KindUpstreamStatus,
		},
		{
			name: "invalid json",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, "<html>")
			},
			wantKind: apierror.KindInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := newTestClient(t, tt.handler, Config{})
			_, err := client.Fetch(context.Background(), "/permission")
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, apierror.KindOf(err))
		})
	}
}

func TestClient_Fetch_NoResponseTimeout(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(150 * time.Millisecond)
		_, _ = io.WriteString(w, `[]`)
	}, Config{ResponseTimeout: 20 * time.Millisecond, Deadline: 50 * time.Millisecond})

	body, err := client.Fetch(context.Background(), "/slow")
	require.NoError(t, err, "fetch is not bound by the forward timeouts")
	assert.Equal(t, []any{}, body)
}

func TestClient_Breaker(t *testing.T) {
	t.Parallel()

	var states []int
	breaker := NewBreaker(BreakerConfig{
		Threshold: 2,
		Timeout:   time.Minute,
		OnStateChange: func(_ string, state int) {
			states = append(states, state)
		},
	})

	var hits int
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		hits++
		w.WriteHeader(http.StatusBadGateway)
	}, Config{}, WithBreaker(breaker))

	for range 2 {
		_, err := client.Forward(context.Background(), http.MethodGet, "/x", nil)
		assert.Equal(t, apierror.KindUpstreamStatus, apierror.KindOf(err))
	}
	assert.Equal(t, gobreaker.StateOpen, breaker.State())

	_, err := client.Forward(context.Background(), http.MethodGet, "/x", nil)
	e := apierror.As(err)
	assert.Equal(t, apierror.KindUpstreamTransport, e.Kind)
	assert.Equal(t, http.StatusServiceUnavailable, e.Status)
	assert.Equal(t, 2, hits, "open breaker does not contact upstream")
	assert.Equal(t, []int{int(gobreaker.StateOpen)}, states)
}

func TestBreaker_ClientErrorsDoNotTrip(t *testing.T) {
	t.Parallel()

	breaker := NewBreaker(BreakerConfig{Threshold: 1})
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}, Config{}, WithBreaker(breaker))

	for range 5 {
		_, err := client.Forward(context.Background(), http.MethodPost, "/x", []byte(`{}`))
		assert.Equal(t, apierror.KindUpstreamStatus, apierror.KindOf(err))
	}
	assert.Equal(t, gobreaker.StateClosed, breaker.State())
}
