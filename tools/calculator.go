// Package tools holds the tools served by calcmcp.
package tools

import (
	"github.com/localrivet/calcmcp/calc"
	"github.com/localrivet/calcmcp/protocol"
	"github.com/localrivet/calcmcp/resolver"
	"github.com/localrivet/calcmcp/server"
)

// CalculateName is the name of the calculator tool.
const CalculateName = "calculate"

const calculateDescription = "Compute result from a JSON object or a URL pointing to JSON " +
	"with fields 'operand1', 'operand2' and 'operation' (one of +, -, *, /)."

// Calculate returns the handler for the calculator tool. The handler resolves
// the payload from its parameters and computes the result.
func Calculate(r *resolver.Resolver) server.ToolHandler {
	return func(ctx *server.Context, args map[string]any) (any, error) {
		src, err := resolver.DecodeSource(args)
		if err != nil {
			return nil, err
		}
		payload, err := r.Resolve(ctx, src)
		if err != nil {
			return nil, err
		}
		result, err := calc.Calculate(payload)
		if err != nil {
			return nil, err
		}
		ctx.Logger.Debug("calculated", "op", result.Op, "result", result.Result)
		return result, nil
	}
}

// RegisterCalculator registers the calculator tool on srv.
func RegisterCalculator(srv *server.Server, r *resolver.Resolver) {
	srv.Tool(CalculateName, calculateDescription, Calculate(r), resolver.Source{})
	srv.WithAnnotations(CalculateName, protocol.ToolAnnotations{
		Title:          "Calculator",
		ReadOnlyHint:   protocol.BoolPtr(true),
		IdempotentHint: protocol.BoolPtr(true),
		OpenWorldHint:  protocol.BoolPtr(true),
	})
}
