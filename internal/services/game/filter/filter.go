// Package filter translates AIP-160 list filters over character sheets into
// SQL conditions.
//
// Supported fields: name, status, campaign, player, archetype (strings),
// weave_level (int) and created_at / updated_at (timestamps, compared with
// timestamp("2026-01-02T15:04:05Z")). Comparisons combine with AND, OR and
// NOT.
package filter

import (
	"fmt"
	"strings"
	"time"

	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"

	apperrors "github.com/louisbranch/tapestry/internal/platform/errors"
)

// Condition is a SQL WHERE fragment with positional parameters.
type Condition struct {
	Clause string
	Params []any
}

// Empty reports whether the condition has no clause.
func (c Condition) Empty() bool {
	return c.Clause == ""
}

type column struct {
	name      string
	timestamp bool
}

var columns = map[string]column{
	"name":        {name: "name"},
	"status":      {name: "status"},
	"campaign":    {name: "campaign_id"},
	"player":      {name: "player_id"},
	"archetype":   {name: "archetype_key"},
	"weave_level": {name: "weave_level"},
	"created_at":  {name: "created_at", timestamp: true},
	"updated_at":  {name: "updated_at", timestamp: true},
}

// Declarations returns the identifiers a sheet filter may reference.
func Declarations() (*filtering.Declarations, error) {
	return filtering.NewDeclarations(
		filtering.DeclareStandardFunctions(),
		filtering.DeclareIdent("name", filtering.TypeString),
		filtering.DeclareIdent("status", filtering.TypeString),
		filtering.DeclareIdent("campaign", filtering.TypeString),
		filtering.DeclareIdent("player", filtering.TypeString),
		filtering.DeclareIdent("archetype", filtering.TypeString),
		filtering.DeclareIdent("weave_level", filtering.TypeInt),
		filtering.DeclareIdent("created_at", filtering.TypeTimestamp),
		filtering.DeclareIdent("updated_at", filtering.TypeTimestamp),
	)
}

// Parse checks a filter expression and translates it. An empty expression
// yields an empty condition. Failures carry CodeInvalidFilter.
func Parse(raw string) (Condition, error) {
	if strings.TrimSpace(raw) == "" {
		return Condition{}, nil
	}
	decls, err := Declarations()
	if err != nil {
		return Condition{}, fmt.Errorf("create declarations: %w", err)
	}
	parsed, err := filtering.ParseFilterString(raw, decls)
	if err != nil {
		return Condition{}, invalid("filter cannot be parsed", err)
	}
	cond, err := translate(parsed.CheckedExpr.GetExpr())
	if err != nil {
		return Condition{}, invalid("filter is not supported", err)
	}
	return cond, nil
}

func invalid(message string, err error) error {
	return apperrors.WithMetadata(apperrors.CodeInvalidFilter, message, map[string]string{"reason": err.Error()})
}

func translate(e *expr.Expr) (Condition, error) {
	call, ok := e.GetExprKind().(*expr.Expr_CallExpr)
	if !ok {
		return Condition{}, fmt.Errorf("unsupported expression %T", e.GetExprKind())
	}
	fn := call.CallExpr.GetFunction()
	args := call.CallExpr.GetArgs()
	switch fn {
	case filtering.FunctionAnd, "_&&_":
		return join(args, "AND")
	case filtering.FunctionOr, "_||_":
		return join(args, "OR")
	case filtering.FunctionNot, "_!_":
		if len(args) != 1 {
			return Condition{}, fmt.Errorf("NOT takes one argument")
		}
		inner, err := translate(args[0])
		if err != nil {
			return Condition{}, err
		}
		return Condition{Clause: "NOT (" + inner.Clause + ")", Params: inner.Params}, nil
	}
	if op, ok := comparisonOps[fn]; ok {
		return compare(args, op)
	}
	return Condition{}, fmt.Errorf("unsupported function %s", fn)
}

var comparisonOps = map[string]string{
	filtering.FunctionEquals:        "=",
	filtering.FunctionNotEquals:     "!=",
	filtering.FunctionLessThan:      "<",
	filtering.FunctionLessEquals:    "<=",
	filtering.FunctionGreaterThan:   ">",
	filtering.FunctionGreaterEquals: ">=",
}

func join(args []*expr.Expr, op string) (Condition, error) {
	if len(args) != 2 {
		return Condition{}, fmt.Errorf("%s takes two arguments", op)
	}
	left, err := translate(args[0])
	if err != nil {
		return Condition{}, err
	}
	right, err := translate(args[1])
	if err != nil {
		return Condition{}, err
	}
	params := make([]any, 0, len(left.Params)+len(right.Params))
	params = append(append(params, left.Params...), right.Params...)
	return Condition{
		Clause: "(" + left.Clause + " " + op + " " + right.Clause + ")",
		Params: params,
	}, nil
}

func compare(args []*expr.Expr, op string) (Condition, error) {
	if len(args) != 2 {
		return Condition{}, fmt.Errorf("comparison takes two arguments")
	}
	ident, ok := args[0].GetExprKind().(*expr.Expr_IdentExpr)
	if !ok {
		return Condition{}, fmt.Errorf("left side must be a field")
	}
	field := ident.IdentExpr.GetName()
	col, ok := columns[field]
	if !ok {
		return Condition{}, fmt.Errorf("unknown field %s", field)
	}
	value, err := literal(args[1], col.timestamp)
	if err != nil {
		return Condition{}, fmt.Errorf("%s: %w", field, err)
	}
	return Condition{Clause: col.name + " " + op + " ?", Params: []any{value}}, nil
}

// literal extracts a constant. Timestamps become Unix milliseconds, the
// storage format of the time columns.
func literal(e *expr.Expr, timestamp bool) (any, error) {
	switch kind := e.GetExprKind().(type) {
	case *expr.Expr_ConstExpr:
		if timestamp {
			return nil, fmt.Errorf("timestamps must use timestamp(\"...\")")
		}
		switch c := kind.ConstExpr.GetConstantKind().(type) {
		case *expr.Constant_StringValue:
			return c.StringValue, nil
		case *expr.Constant_Int64Value:
			return c.Int64Value, nil
		case *expr.Constant_Uint64Value:
			return c.Uint64Value, nil
		case *expr.Constant_DoubleValue:
			return c.DoubleValue, nil
		case *expr.Constant_BoolValue:
			return c.BoolValue, nil
		default:
			return nil, fmt.Errorf("unsupported constant %T", c)
		}
	case *expr.Expr_CallExpr:
		if kind.CallExpr.GetFunction() != filtering.FunctionTimestamp || len(kind.CallExpr.GetArgs()) != 1 {
			return nil, fmt.Errorf("unsupported value function %s", kind.CallExpr.GetFunction())
		}
		arg, ok := kind.CallExpr.GetArgs()[0].GetConstExpr().GetConstantKind().(*expr.Constant_StringValue)
		if !ok {
			return nil, fmt.Errorf("timestamp takes a string")
		}
		ts, err := time.Parse(time.RFC3339Nano, arg.StringValue)
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp %q", arg.StringValue)
		}
		return ts.UTC().UnixMilli(), nil
	default:
		return nil, fmt.Errorf("expected a constant, got %T", kind)
	}
}
