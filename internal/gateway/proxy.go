package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"slices"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/readr-media/readr-bff/internal/apierror"
	"github.com/readr-media/readr-bff/internal/auth"
	"github.com/readr-media/readr-bff/internal/upstream"
)

// Forwarder sends a request to the upstream API and returns its raw
// response.
type Forwarder interface {
	Forward(ctx context.Context, method, path string, body []byte) (*upstream.Response, error)
	URL(path string) string
}

// mutatingMethods need a verified identity on the passthrough.
var mutatingMethods = []string{http.MethodPost, http.MethodPut, http.MethodDelete}

// emptyBody is sent upstream in place of a missing mutating body.
var emptyBody = []byte("{}")

// ProxiedRequest describes one passthrough call.
type ProxiedRequest struct {
	Method   string
	Path     string
	RawQuery string
	Body     []byte
	Identity *auth.Identity
}

// Target returns the path with its raw query.
func (p *ProxiedRequest) Target() string {
	if p.RawQuery == "" {
		return p.Path
	}
	return p.Path + "?" + p.RawQuery
}

// Proxy forwards requests verbatim to the upstream API.
type Proxy struct {
	upstream Forwarder
	logger   *zap.Logger
}

// NewProxy creates a passthrough proxy.
func NewProxy(fwd Forwarder, logger *zap.Logger) *Proxy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Proxy{upstream: fwd, logger: logger}
}

// RequireTokenForMutations runs verifier in front of POST, PUT and DELETE
// requests only.
func RequireTokenForMutations(verifier gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !slices.Contains(mutatingMethods, c.Request.Method) {
			c.Next()
			return
		}
		verifier(c)
	}
}

// Handle serves GET, POST, PUT and DELETE. Mutations need a verified
// identity. Other methods get 404.
func (p *Proxy) Handle(c *gin.Context) {
	p.serve(c, true)
}

// HandleOpen is Handle for rules that require no token: mutations are
// forwarded without an identity.
func (p *Proxy) HandleOpen(c *gin.Context) {
	p.serve(c, false)
}

func (p *Proxy) serve(c *gin.Context, identityRequired bool) {
	method := c.Request.Method
	switch {
	case method == http.MethodGet:
		p.get(c, p.describe(c, nil))

	case slices.Contains(mutatingMethods, method):
		if _, ok := auth.GetIdentity(c); identityRequired && !ok {
			_ = c.Error(apierror.Unauthorized(auth.ErrNoToken))
			c.Abort()
			return
		}
		body, err := requestBody(c.Request)
		if err != nil {
			_ = c.Error(apierror.Internal(fmt.Errorf("read request body: %w", err)))
			c.Abort()
			return
		}
		p.mutate(c, p.describe(c, body))

	default:
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Not Found",
			"message": "No route matched the request",
		})
	}
}

func (p *Proxy) describe(c *gin.Context, body []byte) *ProxiedRequest {
	req := &ProxiedRequest{
		Method:   c.Request.Method,
		Path:     c.Request.URL.EscapedPath(),
		RawQuery: c.Request.URL.RawQuery,
		Body:     body,
	}
	if identity, ok := auth.GetIdentity(c); ok {
		req.Identity = identity
	}
	return req
}

// get relays the upstream JSON body unmodified apart from whitespace.
func (p *Proxy) get(c *gin.Context, req *ProxiedRequest) {
	resp, err := p.upstream.Forward(context.WithoutCancel(c.Request.Context()),
		req.Method, req.Target(), nil)
	if err != nil {
		p.fail(c, req, err)
		return
	}

	if len(bytes.TrimSpace(resp.Body)) == 0 {
		c.Status(resp.Status)
		return
	}

	var compacted bytes.Buffer
	if err := json.Compact(&compacted, resp.Body); err != nil {
		p.fail(c, req, apierror.InvalidResponse(p.upstream.URL(req.Target()), err))
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", compacted.Bytes())
}

// mutate forwards the body and answers 200 with no body on success.
func (p *Proxy) mutate(c *gin.Context, req *ProxiedRequest) {
	_, err := p.upstream.Forward(context.WithoutCancel(c.Request.Context()),
		req.Method, req.Target(), req.Body)
	if err != nil {
		p.fail(c, req, err)
		return
	}
	c.Status(http.StatusOK)
}

func (p *Proxy) fail(c *gin.Context, req *ProxiedRequest, err error) {
	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("url", p.upstream.URL(req.Target())),
		zap.Error(err),
	}
	if req.Identity != nil {
		fields = append(fields, zap.String("identity", req.Identity.IDString()))
	}
	p.logger.Error("error occurred during upstream request", fields...)

	_ = c.Error(err)
	c.Abort()
}

// requestBody returns the body to forward as JSON. An empty body becomes
// "{}" and a urlencoded form becomes a JSON object.
func requestBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return emptyBody, nil
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r.Body); err != nil {
		return nil, err
	}
	body := buf.Bytes()
	if len(bytes.TrimSpace(body)) == 0 {
		return emptyBody, nil
	}

	if mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err == nil &&
		mediaType == "application/x-www-form-urlencoded" {
		return formToJSON(body)
	}
	return body, nil
}

// formToJSON encodes a urlencoded form as a JSON object. Repeated keys
// become arrays.
func formToJSON(body []byte) ([]byte, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, err
	}
	obj := make(map[string]any, len(values))
	for k, v := range values {
		if len(v) == 1 {
			obj[k] = v[0]
		} else {
			obj[k] = v
		}
	}
	return json.Marshal(obj)
}
