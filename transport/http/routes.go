package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/localrivet/calcmcp/calc"
	"github.com/localrivet/calcmcp/protocol"
	"github.com/localrivet/calcmcp/util/conversion"
	"github.com/localrivet/calcmcp/util/schema"
)

// toolName is the tool behind POST /tools/calculate.
const toolName = "calculate"

// envelope is the tool-envelope body form.
type envelope struct {
	Tool   string         `json:"tool"`
	Params map[string]any `json:"params"`
}

// successEnvelope wraps a tool result for envelope-form requests.
type successEnvelope struct {
	Status string `json:"status"`
	Result any    `json:"result"`
}

func (t *Transport) newEngine() *gin.Engine {
	engine := gin.New()
	engine.Use(t.recovery(), t.requestID(), t.accessLog(), t.bodyLimit())
	engine.HandleMethodNotAllowed = true
	engine.NoRoute(t.guardPrefixes(), func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not Found"})
	})
	engine.NoMethod(t.guardPrefixes(), func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"detail": "Method Not Allowed"})
	})

	health := engine.Group("")
	if t.cfg.HealthRequireAuth {
		health.Use(t.security())
	}
	health.GET("/health", t.handleHealth)
	health.GET("/healthz", t.handleHealth)

	tools := engine.Group(PrefixTools, t.security())
	tools.POST("/"+toolName, t.handleToolCall)

	mcp := engine.Group(PrefixMCP, t.security())
	mcp.POST("", t.handleMCP)
	mcp.GET("", t.handleStream)
	mcp.GET("/ws", gin.WrapH(t.ws))

	return engine
}

func (t *Transport) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleToolCall serves POST /tools/calculate.
func (t *Transport) handleToolCall(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		t.writeError(c, err)
		return
	}
	t.callTool(c, body)
}

// handleMCP serves POST /mcp: JSON-RPC messages go to the MCP server, any
// other body is treated as a plain tool call.
func (t *Transport) handleMCP(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		t.writeError(c, err)
		return
	}
	if !protocol.LooksLikeJSONRPC(body) && isObject(body) {
		t.callTool(c, body)
		return
	}

	reply, err := t.srv.HandleMessage(c.Request.Context(), body)
	if err != nil {
		t.writeError(c, protocol.Internal(err))
		return
	}
	if reply == nil {
		c.Status(http.StatusAccepted)
		return
	}
	c.Data(http.StatusOK, "application/json", reply)
}

// handleStream serves GET /mcp. Server-initiated streaming is not offered;
// the stream announces the POST endpoint and closes.
func (t *Transport) handleStream(c *gin.Context) {
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "close")
	c.SSEvent("endpoint", PrefixMCP)
	c.Writer.Flush()
}

// callTool dispatches one of the plain body forms.
func (t *Transport) callTool(c *gin.Context, body []byte) {
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		t.writeError(c, protocol.Validationf("Invalid JSON body: %w", err))
		return
	}
	if fields == nil {
		t.writeError(c, protocol.Validation("Request body must be a JSON object."))
		return
	}

	ctx := c.Request.Context()

	if _, ok := fields["tool"]; ok {
		env, err := schema.Decode[envelope](fields)
		if err != nil {
			t.writeError(c, protocol.Validationf("Invalid tool envelope: %w", err))
			return
		}
		result, err := t.srv.CallTool(ctx, env.Tool, env.Params)
		if err != nil {
			t.writeError(c, err)
			return
		}
		t.writeResult(c, successEnvelope{Status: "success", Result: result})
		return
	}

	args := fields
	if isBareInput(fields) {
		args = map[string]any{"json": fields}
	}
	result, err := t.srv.CallTool(ctx, toolName, args)
	if err != nil {
		t.writeError(c, err)
		return
	}
	t.writeResult(c, result)
}

// writeResult encodes v before anything is written so an unencodable result
// still yields a structured error response.
func (t *Transport) writeResult(c *gin.Context, v any) {
	data, err := conversion.ToJSON(v)
	if err != nil {
		t.writeError(c, protocol.Internal(fmt.Errorf("encode result: %w", err)))
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(data))
}

// isBareInput reports whether the body is a calculation input itself rather
// than a json/json_url selector.
func isBareInput(fields map[string]any) bool {
	if _, ok := fields["json"]; ok {
		return false
	}
	if _, ok := fields["json_url"]; ok {
		return false
	}
	for _, key := range []string{calc.KeyOperand1, calc.KeyOperand2, calc.KeyOperation} {
		if _, ok := fields[key]; ok {
			return true
		}
	}
	return false
}

func isObject(body []byte) bool {
	var probe map[string]json.RawMessage
	return json.Unmarshal(body, &probe) == nil && probe != nil
}

// readBody reads the request body, mapping an oversized body to a
// validation error.
func readBody(c *gin.Context) ([]byte, error) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, protocol.Validation("Request body too large.")
		}
		return nil, protocol.Validationf("Could not read request body: %w", err)
	}
	return body, nil
}
