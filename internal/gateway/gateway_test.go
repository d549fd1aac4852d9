package gateway

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lestrrat-go/jwx/v2/jwa"
	jwxjwt "github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/readr-media/readr-bff/internal/apierror"
	"github.com/readr-media/readr-bff/internal/auth"
	"github.com/readr-media/readr-bff/internal/authz"
	"github.com/readr-media/readr-bff/internal/config"
	"github.com/readr-media/readr-bff/internal/server/middleware"
	"github.com/readr-media/readr-bff/internal/upstream"
)

const testSecret = "gateway-secret"

type recordedCall struct {
	Method string
	Target string
	Body   string
	Type   string
}

// fakeAPI is an upstream API with canned responses keyed by path.
type fakeAPI struct {
	mu        sync.Mutex
	calls     []recordedCall
	responses map[string]func(w http.ResponseWriter)
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.calls = append(f.calls, recordedCall{
		Method: r.Method,
		Target: r.URL.RequestURI(),
		Body:   string(body),
		Type:   r.Header.Get("Content-Type"),
	})
	respond, ok := f.responses[r.URL.Path]
	f.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusOK)
		return
	}
	respond(w)
}

func (f *fakeAPI) Calls() []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedCall(nil), f.calls...)
}

func jsonResponse(status int, body string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

const permissionBody = `{"_items":[
	{"role":3,"object":"post:create","permission":1},
	{"role":3,"object":"post:read","permission":1},
	{"role":3,"object":"poll:delete","permission":0},
	{"role":9,"object":"post:create","permission":1}
]}`

type harness struct {
	api    *fakeAPI
	engine *gin.Engine
	gw     *Gateway
	logs   *observer.ObservedLogs
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()

	api := &fakeAPI{responses: map[string]func(http.ResponseWriter){
		"/permission": jsonResponse(http.StatusOK, permissionBody),
	}}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	client, err := upstream.New(upstream.Config{BaseURL: srv.URL})
	require.NoError(t, err)

	verifier, err := auth.NewVerifier(testSecret)
	require.NoError(t, err)

	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)

	catalogue := authz.NewUpstreamCatalogue(client, "")
	cfg := Config{
		Upstream:  client,
		Verifier:  auth.Middleware(verifier),
		Filter:    authz.NewFilter(catalogue),
		Catalogue: catalogue,
		Models: config.ModelTable{
			"www.readr.tw": {"post", "project"},
		},
		Logger: logger,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	gw, err := New(cfg)
	require.NoError(t, err)

	engine := gin.New()
	engine.Use(middleware.RequestID(), middleware.ErrorBoundary(logger))
	require.NoError(t, gw.Mount(engine))

	return &harness{api: api, engine: engine, gw: gw, logs: logs}
}

func (h *harness) respond(path string, respond func(http.ResponseWriter)) {
	h.api.mu.Lock()
	defer h.api.mu.Unlock()
	h.api.responses[path] = respond
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.engine.ServeHTTP(w, req)
	return w
}

func token(t *testing.T, claims map[string]any) string {
	t.Helper()

	tok := jwxjwt.New()
	for k, v := range claims {
		require.NoError(t, tok.Set(k, v))
	}
	require.NoError(t, tok.Set(jwxjwt.ExpirationKey, time.Now().Add(time.Hour)))
	signed, err := jwxjwt.Sign(tok, jwxjwt.WithKey(jwa.HS256, []byte(testSecret)))
	require.NoError(t, err)
	return string(signed)
}

func authed(t *testing.T, method, target, body string, claims map[string]any) *http.Request {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Authorization", "Bearer "+token(t, claims))
	return req
}

func member(id any, role any) map[string]any {
	return map[string]any{"id": id, "role": role}
}

func TestNew_MissingDependencies(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrMissingDependency)
	assert.Contains(t, err.Error(), "upstream")
}

func TestGateway_RuleOrder(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	var names []string
	for _, r := range h.gw.Table().Rules() {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{
		"enews-group-list", RuleAsset, RuleLogin, RuleActivate, RuleProject,
		RuleReport, RuleMemo, RuleMember, RuleMembers, RulePost, RulePoll,
		RuleTags, RuleToken, "trace", "available-ms", "profile", "status",
	}, names)

	rule, ok := h.gw.Table().Match(http.MethodPost, "/post/1")
	require.True(t, ok)
	assert.Equal(t, AuthTokenAndScope, rule.Auth)
}

func TestPassthrough_MutationWithoutToken(t *testing.T) {
	t.Parallel()

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t, nil)

			w := h.do(httptest.NewRequest(method, "/anything/else", strings.NewReader(`{"a":1}`)))

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, apierror.InvalidTokenText, w.Body.String())
			assert.Empty(t, h.api.Calls())
		})
	}
}

func TestPassthrough_GetRelaysBody(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.respond("/anything/else", jsonResponse(http.StatusOK, `{"snake_key": [1, 2],  "nested": {"a_b": null}}`))

	w := h.do(httptest.NewRequest(http.MethodGet, "/anything/else?max_result=10&page=2", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"snake_key":[1,2],"nested":{"a_b":null}}`, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")

	calls := h.api.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, http.MethodGet, calls[0].Method)
	assert.Equal(t, "/anything/else?max_result=10&page=2", calls[0].Target)
}

func TestPassthrough_GetEmptyBody(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.respond("/empty", func(w http.ResponseWriter) { w.WriteHeader(http.StatusNoContent) })

	w := h.do(httptest.NewRequest(http.MethodGet, "/empty", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestPassthrough_GetInvalidJSON(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.respond("/broken", jsonResponse(http.StatusOK, `{"a":`))

	w := h.do(httptest.NewRequest(http.MethodGet, "/broken", nil))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	var env apierror.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, http.StatusBadGateway, env.Status)
	assert.True(t, strings.HasPrefix(env.Text, "invalid upstream response"))
}

func TestPassthrough_UpstreamStatusEchoed(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.respond("/missing", jsonResponse(http.StatusNotFound, `not here`))

	w := h.do(httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"status":404,"text":"not here"}`, w.Body.String())
	assert.Equal(t, 1, h.logs.FilterMessage("error occurred during upstream request").Len())
}

func TestPassthrough_StatusLikePathKeepsEnvelope(t *testing.T) {
	t.Parallel()

	for _, target := range []string{"/posts/status", "/posts?next=/status"} {
		t.Run(target, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t, nil)
			u, err := url.Parse(target)
			require.NoError(t, err)
			h.respond(u.Path, jsonResponse(http.StatusServiceUnavailable, `down`))

			w := h.do(httptest.NewRequest(http.MethodGet, target, nil))

			assert.Equal(t, http.StatusServiceUnavailable, w.Code)
			assert.JSONEq(t, `{"status":503,"text":"down"}`, w.Body.String())
		})
	}
}

func TestOpenRules_MutationsWithoutToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		method string
		target string
	}{
		{http.MethodPost, "/token"},
		{http.MethodPost, "/asset/x"},
		{http.MethodDelete, "/asset/x"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t, nil)
			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(`{"a":1}`))
			req.Header.Set("Content-Type", "application/json")

			w := h.do(req)

			assert.Equal(t, http.StatusOK, w.Code)
			calls := h.api.Calls()
			require.Len(t, calls, 1)
			assert.Equal(t, tt.method, calls[0].Method)
			assert.Equal(t, tt.target, calls[0].Target)
			assert.Equal(t, `{"a":1}`, calls[0].Body)
		})
	}
}

func TestPassthrough_DeleteSendsEmptyObject(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)

	w := h.do(authed(t, http.MethodDelete, "/comment/5", "", member(1, 3)))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
	calls := h.api.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, http.MethodDelete, calls[0].Method)
	assert.Equal(t, "{}", calls[0].Body)
	assert.Equal(t, "application/json", calls[0].Type)
}

func TestPassthrough_FormBodyBecomesJSON(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	req := authed(t, http.MethodPost, "/comment", "text=hi&tag=a&tag=b", member(1, 3))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := h.do(req)

	require.Equal(t, http.StatusOK, w.Code)
	calls := h.api.Calls()
	require.Len(t, calls, 1)
	assert.JSONEq(t, `{"text":"hi","tag":["a","b"]}`, calls[0].Body)
}

func TestPassthrough_OtherMethodsNotFound(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)

	w := h.do(httptest.NewRequest(http.MethodPatch, "/comment/1", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, h.api.Calls())
}

func TestReport_PutReturnsEmptyOK(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.respond("/report/42", jsonResponse(http.StatusOK, `{"ignored":true}`))

	w := h.do(authed(t, http.MethodPut, "/report/42", `{"title":"x"}`, member(1, 3)))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
	calls := h.api.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, `{"title":"x"}`, calls[0].Body)
}

func TestTokenRules_RejectMissingToken(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	for _, target := range []string{"/login", "/project/1", "/report", "/memo/2", "/member/3", "/members", "/tags"} {
		w := h.do(httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, target)
		assert.Equal(t, apierror.InvalidTokenText, w.Body.String(), target)
	}
	assert.Empty(t, h.api.Calls())
}

func TestOpenRules_NoToken(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	for _, target := range []string{"/asset/1", "/token/refresh"} {
		w := h.do(httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusOK, w.Code, target)
	}
	assert.Len(t, h.api.Calls(), 2)
}

func TestActivate_UsesActivationVerifier(t *testing.T) {
	t.Parallel()

	verifier, err := auth.NewVerifier(testSecret)
	require.NoError(t, err)
	h := newHarness(t, func(cfg *Config) {
		cfg.ActivationVerifier = auth.MiddlewareWithConfig(auth.MiddlewareConfig{
			Verifier:   verifier,
			QueryParam: "activation_token",
		})
	})

	w := h.do(httptest.NewRequest(http.MethodGet, "/activate?activation_token="+token(t, member(1, 3)), nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = h.do(httptest.NewRequest(http.MethodGet, "/activate", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStatus(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)

	w := h.do(authed(t, http.MethodGet, "/status", "", member(1, 3)))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "true", w.Body.String())
	assert.Contains(t, w.Header().Get("Cache-Control"), "no-store")

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	w = h.do(req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "false", w.Body.String())

	w = h.do(httptest.NewRequest(http.MethodGet, "/status", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "false", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/memo", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	w = h.do(req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProfile(t *testing.T) {
	t.Parallel()

	memberBody := `{"_items":[{"id":7,"name":"Ann","nickname":"ann","mail":"a@b.c",
		"description":"hi","uuid":"u-7","role":3,"profile_image":"p.png","points":12,"password":"x"}]}`

	t.Run("aggregates member and scopes", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, nil)
		h.respond("/member/7", jsonResponse(http.StatusOK, memberBody))

		w := h.do(authed(t, http.MethodGet, "/profile", "", member(7, 3)))

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"name":"Ann","nickname":"ann","mail":"a@b.c","description":"hi",
			"id":7,"uuid":"u-7","role":3,"scopes":["post:create","post:read"],
			"profileImage":"p.png","points":12}`, w.Body.String())
		assert.Equal(t, "no-store, no-cache, must-revalidate", w.Header().Get("Cache-Control"))
	})

	t.Run("null fields are kept and missing fields omitted", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, nil)
		h.respond("/member/7", jsonResponse(http.StatusOK,
			`{"_items":[{"id":7,"name":"a","description":null,"role":3,"points":0}]}`))

		w := h.do(authed(t, http.MethodGet, "/profile", "", member(7, 3)))

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"name":"a","description":null,"id":7,"role":3,
			"scopes":["post:create","post:read"],"points":0}`, w.Body.String())
	})

	t.Run("string role in token matches numeric member role", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, nil)
		h.respond("/member/7", jsonResponse(http.StatusOK, memberBody))

		w := h.do(authed(t, http.MethodGet, "/profile", "", member(7, "3")))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("role mismatch asks for reauthorization", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, nil)
		h.respond("/member/7", jsonResponse(http.StatusOK, memberBody))

		w := h.do(authed(t, http.MethodGet, "/profile", "", member(7, 9)))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"message":"Should Authorized Again."}`, w.Body.String())
	})

	t.Run("string id asks for reauthorization without upstream calls", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, nil)

		w := h.do(authed(t, http.MethodGet, "/profile", "", member("legacy-7", 3)))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"message":"Should Authorized Again."}`, w.Body.String())
		assert.Empty(t, h.api.Calls())
	})

	t.Run("missing member is an internal error", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, nil)
		h.respond("/member/7", jsonResponse(http.StatusOK, `{"_items":[]}`))

		w := h.do(authed(t, http.MethodGet, "/profile", "", member(7, 3)))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("upstream failure is an internal error", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, nil)
		h.respond("/member/7", jsonResponse(http.StatusBadGateway, `down`))

		w := h.do(authed(t, http.MethodGet, "/profile", "", member(7, 3)))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, 1, h.logs.FilterMessage("error occurred when fetching profile").Len())
	})

	t.Run("other methods pass through", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, nil)

		w := h.do(authed(t, http.MethodPost, "/profile", `{}`, member(7, 3)))
		assert.Equal(t, http.StatusOK, w.Code)
		calls := h.api.Calls()
		require.Len(t, calls, 1)
		assert.Equal(t, "/profile", calls[0].Target)
	})
}

func TestPost_ScopeFilter(t *testing.T) {
	t.Parallel()

	t.Run("granted", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, nil)

		w := h.do(authed(t, http.MethodPost, "/post", `{"title":"t"}`, member(1, 3)))

		assert.Equal(t, http.StatusOK, w.Code)
		var forwarded []string
		for _, call := range h.api.Calls() {
			forwarded = append(forwarded, call.Method+" "+call.Target)
		}
		assert.Equal(t, []string{"GET /permission", "POST /post"}, forwarded)
		assert.Equal(t, 1, h.logs.FilterMessage("response traced").Len())
	})

	t.Run("denied", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, nil)

		w := h.do(authed(t, http.MethodDelete, "/poll/3", "", member(1, 3)))

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.JSONEq(t, `{"error":"Forbidden","message":"insufficient scope: poll:delete"}`, w.Body.String())
		for _, call := range h.api.Calls() {
			assert.NotEqual(t, http.MethodDelete, call.Method)
		}
	})
}

func TestAvailableModels(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/available-ms", nil)
	req.Host = "www.readr.tw:443"
	w := h.do(req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `["post","project"]`, w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/available-ms", nil)
	req.Host = "unknown.example"
	w = h.do(req)
	assert.Equal(t, "[]", w.Body.String())

	h.gw.OnConfigReload(&config.Config{AvailableModels: config.ModelTable{"unknown.example": {"memo"}}})
	w = h.do(req)
	assert.JSONEq(t, `["memo"]`, w.Body.String())
	assert.Empty(t, h.api.Calls())
}

func TestIdentifier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		host      string
		forwarded string
		want      string
	}{
		{"host", "readr.tw", "", "readr.tw"},
		{"host with port", "readr.tw:8080", "", "readr.tw"},
		{"forwarded wins", "internal:8080", "www.readr.tw", "www.readr.tw"},
		{"first forwarded entry", "internal", "a.tw:443, b.tw", "a.tw"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Host = tt.host
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-Host", tt.forwarded)
			}
			assert.Equal(t, tt.want, Identifier(req))
		})
	}
}

func TestEnewsGroupList(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)

	w := h.do(httptest.NewRequest(http.MethodGet, "/enews-group-list/list", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var groups struct {
		Items []map[string]any `json:"_items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &groups))
	require.Len(t, groups.Items, 2)
	assert.Equal(t, "滄海一聲笑", groups.Items[0]["group_name"])

	w = h.do(httptest.NewRequest(http.MethodGet, "/enews-group-list/list?id=0", nil))
	var members struct {
		Items []map[string]any `json:"_items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &members))
	require.Len(t, members.Items, 2)
	assert.Equal(t, "fasdf", members.Items[0]["mail"])
	assert.Empty(t, h.api.Calls())
}

func TestTraceSink(t *testing.T) {
	t.Parallel()

	t.Run("disabled", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, nil)

		w := h.do(httptest.NewRequest(http.MethodPost, "/trace", strings.NewReader(`{}`)))
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "404 | Not found.", w.Body.String())
	})

	trace := config.TraceConfig{ProjectID: "readr", KeyFile: "/keys/gcp.json", LogName: "client-trace"}

	t.Run("records event", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, func(cfg *Config) { cfg.Trace = trace })

		w := h.do(httptest.NewRequest(http.MethodPost, "/trace", strings.NewReader(`{"type":"click","n":1}`)))

		assert.Equal(t, http.StatusOK, w.Code)
		entries := h.logs.FilterMessage("client trace").All()
		require.Len(t, entries, 1)
		assert.Equal(t, "client-trace", entries[0].LoggerName)
		assert.Equal(t, "readr", entries[0].ContextMap()["project"])
	})

	t.Run("rejects non-object", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, func(cfg *Config) { cfg.Trace = trace })

		w := h.do(httptest.NewRequest(http.MethodPost, "/trace", strings.NewReader(`[1`)))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("get is not found", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, func(cfg *Config) { cfg.Trace = trace })

		w := h.do(httptest.NewRequest(http.MethodGet, "/trace", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestSubHandlerOverride(t *testing.T) {
	t.Parallel()

	h := newHarness(t, func(cfg *Config) {
		cfg.SubHandlers = SubHandlers{RuleMemo: func(c *gin.Context) {
			identity, _ := auth.GetIdentity(c)
			c.String(http.StatusTeapot, "memo for "+identity.IDString())
		}}
	})

	w := h.do(authed(t, http.MethodGet, "/memo/1", "", member(11, 3)))
	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Equal(t, "memo for 11", w.Body.String())
	assert.Empty(t, h.api.Calls())
}

func TestFormToJSON(t *testing.T) {
	t.Parallel()

	got, err := formToJSON([]byte("a=1&b=x+y&b=z"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"1","b":["x y","z"]}`, string(got))

	_, err = formToJSON([]byte("a=%zz"))
	assert.Error(t, err)
}

func TestProxiedRequest_Target(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/a", (&ProxiedRequest{Path: "/a"}).Target())
	assert.Equal(t, "/a?b=1", (&ProxiedRequest{Path: "/a", RawQuery: "b=1"}).Target())
}
