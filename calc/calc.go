// Package calc implements the calculator's engine: parsing a loosely typed
// JSON payload into a typed Input and dispatching it on one of four binary
// operators.
package calc

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/localrivet/calcmcp/protocol"
	"github.com/localrivet/calcmcp/util/conversion"
)

// Operator is one of the supported operator symbols.
type Operator string

const (
	Add      Operator = "+"
	Subtract Operator = "-"
	Multiply Operator = "*"
	Divide   Operator = "/"
)

// Required payload keys, in the order they are reported when missing.
const (
	KeyOperand1  = "operand1"
	KeyOperand2  = "operand2"
	KeyOperation = "operation"
)

var requiredKeys = []string{KeyOperand1, KeyOperand2, KeyOperation}

// ErrNotObject is the cause of the validation error returned for payloads
// that are not JSON objects.
var ErrNotObject = errors.New("payload must be an object")

// Operators returns the supported operators in declaration order.
func Operators() []Operator {
	return []Operator{Add, Subtract, Multiply, Divide}
}

// Input is a validated calculation request.
type Input struct {
	Operand1  float64
	Operand2  float64
	Operation string
}

// Result is the outcome of a calculation. Operands is always
// [Operand1, Operand2].
type Result struct {
	Result   float64   `json:"result"`
	Op       string    `json:"op"`
	Operands []float64 `json:"operands"`
}

// Parse validates a decoded JSON payload and converts it into an Input.
func Parse(payload any) (Input, error) {
	d, ok := payload.(map[string]any)
	if !ok || d == nil {
		return Input{}, &protocol.Error{
			Kind:    protocol.KindValidation,
			Message: "JSON payload must be an object.",
			Cause:   ErrNotObject,
		}
	}

	var missing []string
	for _, key := range requiredKeys {
		if _, ok := d[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return Input{}, protocol.Validation("Missing required keys: " + strings.Join(missing, ", "))
	}

	operand1, err := conversion.ToFloat64(d[KeyOperand1])
	if err != nil {
		return Input{}, protocol.Validationf("Operands must be numbers: %w", err)
	}
	operand2, err := conversion.ToFloat64(d[KeyOperand2])
	if err != nil {
		return Input{}, protocol.Validationf("Operands must be numbers: %w", err)
	}

	op, err := conversion.ToString(d[KeyOperation])
	if err != nil {
		return Input{}, protocol.Validationf("Invalid operation: %w", err)
	}

	if !finite(operand1) || !finite(operand2) {
		return Input{}, protocol.Validation("Operands must be finite numbers.")
	}

	return Input{Operand1: operand1, Operand2: operand2, Operation: op}, nil
}

// Compute applies in.Operation to the operands.
func Compute(in Input) (Result, error) {
	var result float64
	switch Operator(in.Operation) {
	case Add:
		result = in.Operand1 + in.Operand2
	case Subtract:
		result = in.Operand1 - in.Operand2
	case Multiply:
		result = in.Operand1 * in.Operand2
	case Divide:
		if in.Operand2 == 0 {
			return Result{}, protocol.Validation("Division by zero.")
		}
		result = in.Operand1 / in.Operand2
	default:
		return Result{}, protocol.Validation(unsupported(in.Operation))
	}
	if !finite(result) {
		return Result{}, protocol.Validation("Result is not a finite number.")
	}

	return Result{
		Result:   result,
		Op:       in.Operation,
		Operands: []float64{in.Operand1, in.Operand2},
	}, nil
}

// Calculate parses payload and computes its result.
func Calculate(payload any) (Result, error) {
	in, err := Parse(payload)
	if err != nil {
		return Result{}, err
	}
	return Compute(in)
}

func unsupported(op string) string {
	symbols := make([]string, 0, 4)
	for _, o := range Operators() {
		symbols = append(symbols, string(o))
	}
	return fmt.Sprintf("Unsupported operation '%s'. Use one of: %s", op, strings.Join(symbols, ", "))
}

func finite(f float64) bool {
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}
