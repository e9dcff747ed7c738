package http

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localrivet/calcmcp/auth"
	"github.com/localrivet/calcmcp/logx"
	"github.com/localrivet/calcmcp/resolver"
	"github.com/localrivet/calcmcp/server"
	"github.com/localrivet/calcmcp/tools"
)

const testKey = "secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type setup struct {
	key          string
	origins      string
	healthAuth   bool
	maxBodyBytes int64
}

func newTestTransport(t *testing.T, s setup) *Transport {
	t.Helper()
	logger := logx.Discard()
	srv := server.NewServer("calculator-test", server.WithLogger(logger))
	tools.RegisterCalculator(srv, resolver.New(resolver.WithTimeout(2*time.Second), resolver.WithLogger(logger)))
	srv.Tool("explode", "panics", func(*server.Context, map[string]any) (any, error) {
		panic("kaboom")
	}, struct{}{})
	srv.Tool("unencodable", "returns a non-finite number", func(*server.Context, map[string]any) (any, error) {
		return map[string]any{"value": math.Inf(1)}, nil
	}, struct{}{})

	gate := &auth.Gate{
		Validator: auth.NewAPIKeyValidator(s.key),
		Origins:   auth.ParseOrigins(s.origins),
	}
	return NewTransport(Config{
		MaxBodyBytes:      s.maxBodyBytes,
		HealthRequireAuth: s.healthAuth,
	}, srv, gate, logger)
}

func do(t *testing.T, tr *Transport, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	tr.Handler().ServeHTTP(rec, req)
	return rec
}

func withKey(extra ...string) map[string]string {
	h := map[string]string{auth.HeaderAPIKey: testKey}
	for i := 0; i+1 < len(extra); i += 2 {
		h[extra[i]] = extra[i+1]
	}
	return h
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Detail string `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Detail
}

func TestHealth(t *testing.T) {
	tr := newTestTransport(t, setup{key: testKey})

	for _, path := range []string{"/health", "/healthz"} {
		rec := do(t, tr, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	}
}

func TestHealthRequireAuth(t *testing.T) {
	tr := newTestTransport(t, setup{key: testKey, healthAuth: true})

	rec := do(t, tr, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, tr, http.MethodGet, "/health", "", withKey())
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCalculateBareInput(t *testing.T) {
	tr := newTestTransport(t, setup{key: testKey})

	rec := do(t, tr, http.MethodPost, "/tools/calculate",
		`{"operand1":10,"operand2":5,"operation":"+"}`, withKey())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"result":15,"op":"+","operands":[10,5]}`, rec.Body.String())
}

func TestCalculateInlineForm(t *testing.T) {
	tr := newTestTransport(t, setup{key: testKey})

	rec := do(t, tr, http.MethodPost, "/tools/calculate",
		`{"json":{"operand1":"7","operand2":2,"operation":"/"}}`, withKey())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"result":3.5,"op":"/","operands":[7,2]}`, rec.Body.String())
}

func TestCalculateEnvelopeForm(t *testing.T) {
	tr := newTestTransport(t, setup{key: testKey})

	body := `{"tool":"calculate","params":{"json":{"operand1":6,"operand2":7,"operation":"*"}}}`
	for _, path := range []string{"/tools/calculate", "/mcp"} {
		rec := do(t, tr, http.MethodPost, path, body, withKey())
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.JSONEq(t, `{"status":"success","result":{"result":42,"op":"*","operands":[6,7]}}`, rec.Body.String())
	}
}

func TestCalculateValidationErrors(t *testing.T) {
	tr := newTestTransport(t, setup{key: testKey})

	tests := []struct {
		name   string
		body   string
		detail string
	}{
		{"division by zero", `{"operand1":1,"operand2":0,"operation":"/"}`, "Division by zero."},
		{"unsupported op", `{"operand1":1,"operand2":2,"operation":"^"}`, "Unsupported operation '^'. Use one of: +, -, *, /"},
		{"missing keys", `{"json":{"operation":"+"}}`, "Missing required keys: operand1, operand2"},
		{"both sources", `{"json":{},"json_url":"http://example.com"}`, "Provide exactly one of 'json' or 'json_url'."},
		{"neither source", `{}`, "Provide exactly one of 'json' or 'json_url'."},
		{"unknown tool", `{"tool":"nope","params":{}}`, "Unknown tool 'nope'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, tr, http.MethodPost, "/tools/calculate", tt.body, withKey())
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.detail, detail(t, rec))
		})
	}
}

func TestNonFiniteResultsAreStructuredErrors(t *testing.T) {
	tr := newTestTransport(t, setup{key: testKey})

	tests := []struct {
		name   string
		path   string
		body   string
		detail string
	}{
		{"overflow", "/tools/calculate", `{"operand1":1e308,"operand2":10,"operation":"*"}`, "Result is not a finite number."},
		{"nan operand", "/tools/calculate", `{"operand1":"nan","operand2":1,"operation":"+"}`, "Operands must be finite numbers."},
		{"overflow envelope", "/tools/calculate", `{"tool":"calculate","params":{"json":{"operand1":1e308,"operand2":10,"operation":"*"}}}`, "Result is not a finite number."},
		{"overflow on mcp", "/mcp", `{"operand1":-1e308,"operand2":1e308,"operation":"-"}`, "Result is not a finite number."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, tr, http.MethodPost, tt.path, tt.body, withKey())
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.detail, detail(t, rec))
		})
	}

	t.Run("unencodable result", func(t *testing.T) {
		rec := do(t, tr, http.MethodPost, "/tools/calculate", `{"tool":"unencodable","params":{}}`, withKey())
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "An unexpected internal server error occurred.", detail(t, rec))
	})
}

func TestCalculateBadBodies(t *testing.T) {
	tr := newTestTransport(t, setup{key: testKey})

	for _, body := range []string{`{not json`, `[1,2]`, `null`, `"text"`} {
		rec := do(t, tr, http.MethodPost, "/tools/calculate", body, withKey())
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.NotEmpty(t, detail(t, rec))
	}
}

func TestBodyTooLarge(t *testing.T) {
	tr := newTestTransport(t, setup{key: testKey, maxBodyBytes: 16})

	rec := do(t, tr, http.MethodPost, "/tools/calculate",
		`{"operand1":10,"operand2":5,"operation":"+"}`, withKey())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Request body too large.", detail(t, rec))
}

func TestCalculateFromURL(t *testing.T) {
	payloads := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"operand1":9,"operand2":4,"operation":"-"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer payloads.Close()

	tr := newTestTransport(t, setup{key: testKey})

	rec := do(t, tr, http.MethodPost, "/tools/calculate",
		fmt.Sprintf(`{"json_url":%q}`, payloads.URL+"/ok"), withKey())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"result":5,"op":"-","operands":[9,4]}`, rec.Body.String())

	rec = do(t, tr, http.MethodPost, "/tools/calculate",
		fmt.Sprintf(`{"json_url":%q}`, payloads.URL+"/missing"), withKey())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.True(t, strings.HasPrefix(detail(t, rec), "Failed to fetch JSON: "))
}

func TestAccessControl(t *testing.T) {
	tests := []struct {
		name    string
		setup   setup
		headers map[string]string
		status  int
		detail  string
	}{
		{"missing key", setup{key: testKey}, nil, http.StatusForbidden, "Could not validate credentials"},
		{"wrong key", setup{key: testKey}, map[string]string{auth.HeaderAPIKey: "nope"}, http.StatusForbidden, "Could not validate credentials"},
		{"key not configured", setup{}, withKey(), http.StatusInternalServerError, "API Key not configured on server"},
		{"origin missing", setup{key: testKey, origins: "https://app.example"}, withKey(), http.StatusForbidden, "Origin not allowed"},
		{"origin rejected", setup{key: testKey, origins: "https://app.example"}, withKey("Origin", "https://evil.example"), http.StatusForbidden, "Origin not allowed"},
		{"key checked before origin", setup{key: testKey, origins: "https://app.example"}, map[string]string{"Origin": "https://evil.example"}, http.StatusForbidden, "Could not validate credentials"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestTransport(t, tt.setup)
			for _, path := range []string{"/tools/calculate", "/mcp"} {
				rec := do(t, tr, http.MethodPost, path, `{"operand1":1,"operand2":2,"operation":"+"}`, tt.headers)
				assert.Equal(t, tt.status, rec.Code, path)
				assert.Equal(t, tt.detail, detail(t, rec))
			}
		})
	}

	t.Run("origin allowed", func(t *testing.T) {
		tr := newTestTransport(t, setup{key: testKey, origins: "https://app.example, https://other.example"})
		rec := do(t, tr, http.MethodPost, "/tools/calculate",
			`{"operand1":1,"operand2":2,"operation":"+"}`, withKey("Origin", "https://other.example"))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRequestID(t *testing.T) {
	tr := newTestTransport(t, setup{key: testKey})

	rec := do(t, tr, http.MethodGet, "/health", "", map[string]string{HeaderRequestID: "abc-123"})
	assert.Equal(t, "abc-123", rec.Header().Get(HeaderRequestID))

	rec = do(t, tr, http.MethodGet, "/health", "", nil)
	assert.Len(t, rec.Header().Get(HeaderRequestID), 36)
}

func TestToolPanicIsInternal(t *testing.T) {
	tr := newTestTransport(t, setup{key: testKey})

	rec := do(t, tr, http.MethodPost, "/tools/calculate", `{"tool":"explode","params":{}}`, withKey())
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "An unexpected internal server error occurred.", detail(t, rec))
}

func TestMCPJSONRPC(t *testing.T) {
	tr := newTestTransport(t, setup{key: testKey})

	t.Run("initialize", func(t *testing.T) {
		rec := do(t, tr, http.MethodPost, "/mcp",
			`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"t","version":"0"}}}`,
			withKey())
		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Result struct {
				ProtocolVersion string `json:"protocolVersion"`
				ServerInfo      struct {
					Name string `json:"name"`
				} `json:"serverInfo"`
			} `json:"result"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "2025-03-26", resp.Result.ProtocolVersion)
		assert.Equal(t, "calculator-test", resp.Result.ServerInfo.Name)
	})

	t.Run("notification", func(t *testing.T) {
		rec := do(t, tr, http.MethodPost, "/mcp",
			`{"jsonrpc":"2.0","method":"notifications/initialized"}`, withKey())
		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Empty(t, rec.Body.String())
	})

	t.Run("tools/call", func(t *testing.T) {
		rec := do(t, tr, http.MethodPost, "/mcp",
			`{"jsonrpc":"2.0","id":"c1","method":"tools/call","params":{"name":"calculate","arguments":{"json":{"operand1":2,"operand2":3,"operation":"+"}}}}`,
			withKey())
		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			ID     string `json:"id"`
			Result struct {
				Content []struct {
					Type string `json:"type"`
					Text string `json:"text"`
				} `json:"content"`
				IsError bool `json:"isError"`
			} `json:"result"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "c1", resp.ID)
		assert.False(t, resp.Result.IsError)
		require.Len(t, resp.Result.Content, 1)
		assert.JSONEq(t, `{"result":5,"op":"+","operands":[2,3]}`, resp.Result.Content[0].Text)
	})

	t.Run("parse error", func(t *testing.T) {
		rec := do(t, tr, http.MethodPost, "/mcp", `{"jsonrpc":`, withKey())
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "-32700")
	})
}

func TestMCPStreamPlaceholder(t *testing.T) {
	tr := newTestTransport(t, setup{key: testKey})

	rec := do(t, tr, http.MethodGet, "/mcp", "", withKey())
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/event-stream"))
	assert.Contains(t, rec.Body.String(), "endpoint")
	assert.Contains(t, rec.Body.String(), "/mcp")

	rec = do(t, tr, http.MethodGet, "/mcp", "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestNotFound(t *testing.T) {
	tr := newTestTransport(t, setup{key: testKey})

	rec := do(t, tr, http.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnmatchedProtectedPathsAreGated(t *testing.T) {
	tr := newTestTransport(t, setup{key: testKey})

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/mcp/unknown", http.StatusNotFound},
		{http.MethodPost, "/tools/other", http.StatusNotFound},
		{http.MethodGet, "/tools", http.StatusNotFound},
		{http.MethodGet, "/tools/calculate", http.StatusMethodNotAllowed},
		{http.MethodDelete, "/mcp", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := do(t, tr, tt.method, tt.path, "", nil)
			assert.Equal(t, http.StatusForbidden, rec.Code)
			assert.Equal(t, "Could not validate credentials", detail(t, rec))

			rec = do(t, tr, tt.method, tt.path, "", withKey())
			assert.Equal(t, tt.status, rec.Code)
		})
	}

	rec := do(t, tr, http.MethodGet, "/mcpx", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMCPWebSocket(t *testing.T) {
	tr := newTestTransport(t, setup{key: testKey})
	srv := httptest.NewServer(tr.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, _, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/mcp/ws")
	require.Error(t, err)

	dialer := ws.Dialer{Header: ws.HandshakeHeaderHTTP(http.Header{auth.HeaderAPIKey: []string{testKey}})}
	conn, _, _, err := dialer.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/mcp/ws")
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, wsutil.WriteClientMessage(conn, ws.OpText,
		[]byte(`{"jsonrpc":"2.0","id":7,"method":"tools/list"}`)))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	reply, err := wsutil.ReadServerText(conn)
	require.NoError(t, err)
	assert.Contains(t, string(reply), `"calculate"`)
	assert.Contains(t, string(reply), `"id":7`)
}

func TestStartStop(t *testing.T) {
	tr := newTestTransport(t, setup{key: testKey})
	tr.cfg.Addr = "127.0.0.1:0"
	assert.Empty(t, tr.Addr())

	require.NoError(t, tr.Start())
	addr := tr.Addr()
	require.NotEmpty(t, addr)

	resp, err := http.Get("http://" + addr + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, tr.Stop(ctx))
}
