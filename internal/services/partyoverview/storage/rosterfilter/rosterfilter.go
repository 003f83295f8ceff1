// Package rosterfilter translates AIP-160 roster filters into SQL conditions.
package rosterfilter

import (
	"fmt"
	"strings"

	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// Condition is a SQL WHERE clause fragment with positional parameters.
type Condition struct {
	Clause string
	Params []any
}

// Empty reports whether the condition matches everything.
func (c Condition) Empty() bool {
	return c.Clause == ""
}

// columns maps filter identifiers to actor table columns.
var columns = map[string]string{
	"id":           "id",
	"name":         "name",
	"player_owned": "player_owned",
}

// Declarations returns the identifiers a roster filter may reference.
// true and false are declared so boolean literals type-check.
func Declarations() (*filtering.Declarations, error) {
	return filtering.NewDeclarations(
		filtering.DeclareStandardFunctions(),
		filtering.DeclareIdent("id", filtering.TypeString),
		filtering.DeclareIdent("name", filtering.TypeString),
		filtering.DeclareIdent("player_owned", filtering.TypeBool),
		filtering.DeclareIdent("true", filtering.TypeBool),
		filtering.DeclareIdent("false", filtering.TypeBool),
	)
}

// Parse parses filter and returns the matching SQL condition. An empty
// filter returns an empty condition.
func Parse(filter string) (Condition, error) {
	if strings.TrimSpace(filter) == "" {
		return Condition{}, nil
	}
	decls, err := Declarations()
	if err != nil {
		return Condition{}, fmt.Errorf("create declarations: %w", err)
	}
	parsed, err := filtering.ParseFilterString(filter, decls)
	if err != nil {
		return Condition{}, fmt.Errorf("parse filter: %w", err)
	}
	return translate(parsed.CheckedExpr.GetExpr())
}

func translate(e *expr.Expr) (Condition, error) {
	switch kind := e.GetExprKind().(type) {
	case *expr.Expr_CallExpr:
		return translateCall(kind.CallExpr)
	case *expr.Expr_IdentExpr:
		// A bare boolean field such as `player_owned`.
		return boolColumn(kind.IdentExpr.GetName(), true)
	default:
		return Condition{}, fmt.Errorf("unsupported expression type: %T", kind)
	}
}

func translateCall(call *expr.Expr_Call) (Condition, error) {
	args := call.GetArgs()
	switch call.GetFunction() {
	case filtering.FunctionAnd, filtering.FunctionFuzzyAnd:
		return join(args, "AND")
	case filtering.FunctionOr:
		return join(args, "OR")
	case filtering.FunctionNot:
		if len(args) != 1 {
			return Condition{}, fmt.Errorf("NOT requires 1 argument")
		}
		inner, err := translate(args[0])
		if err != nil {
			return Condition{}, err
		}
		return Condition{Clause: "NOT (" + inner.Clause + ")", Params: inner.Params}, nil
	case filtering.FunctionHas:
		return translateHas(args)
	case filtering.FunctionEquals, filtering.FunctionNotEquals,
		filtering.FunctionLessThan, filtering.FunctionLessEquals,
		filtering.FunctionGreaterThan, filtering.FunctionGreaterEquals:
		return translateComparison(args, call.GetFunction())
	default:
		return Condition{}, fmt.Errorf("unsupported function: %s", call.GetFunction())
	}
}

func join(args []*expr.Expr, op string) (Condition, error) {
	if len(args) < 2 {
		return Condition{}, fmt.Errorf("%s requires at least 2 arguments", op)
	}
	clauses := make([]string, 0, len(args))
	var params []any
	for _, arg := range args {
		part, err := translate(arg)
		if err != nil {
			return Condition{}, err
		}
		clauses = append(clauses, part.Clause)
		params = append(params, part.Params...)
	}
	return Condition{Clause: "(" + strings.Join(clauses, " "+op+" ") + ")", Params: params}, nil
}

func translateHas(args []*expr.Expr) (Condition, error) {
	if len(args) != 2 {
		return Condition{}, fmt.Errorf("has requires 2 arguments")
	}
	column, err := column(args[0])
	if err != nil {
		return Condition{}, err
	}
	value, err := constant(args[1])
	if err != nil {
		return Condition{}, err
	}
	text, ok := value.(string)
	if !ok {
		return Condition{}, fmt.Errorf("has requires a string value")
	}
	return Condition{
		Clause: column + ` LIKE ? ESCAPE '\'`,
		Params: []any{"%" + escapeLike(text) + "%"},
	}, nil
}

func translateComparison(args []*expr.Expr, op string) (Condition, error) {
	if len(args) != 2 {
		return Condition{}, fmt.Errorf("comparison requires 2 arguments")
	}
	name, ok := identName(args[0])
	if !ok {
		return Condition{}, fmt.Errorf("expected identifier on the left of %s", op)
	}
	if literal, isBool := boolLiteral(args[1]); isBool {
		switch op {
		case filtering.FunctionEquals:
			return boolColumn(name, literal)
		case filtering.FunctionNotEquals:
			return boolColumn(name, !literal)
		default:
			return Condition{}, fmt.Errorf("operator %s is not defined for booleans", op)
		}
	}
	column, err := column(args[0])
	if err != nil {
		return Condition{}, err
	}
	value, err := constant(args[1])
	if err != nil {
		return Condition{}, err
	}
	return Condition{Clause: fmt.Sprintf("%s %s ?", column, op), Params: []any{value}}, nil
}

func boolColumn(name string, want bool) (Condition, error) {
	if name != "player_owned" {
		return Condition{}, fmt.Errorf("field %s is not boolean", name)
	}
	value := 0
	if want {
		value = 1
	}
	return Condition{Clause: "player_owned = ?", Params: []any{value}}, nil
}

func identName(e *expr.Expr) (string, bool) {
	ident, ok := e.GetExprKind().(*expr.Expr_IdentExpr)
	if !ok {
		return "", false
	}
	return ident.IdentExpr.GetName(), true
}

func boolLiteral(e *expr.Expr) (bool, bool) {
	switch name, _ := identName(e); name {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	if c, ok := e.GetExprKind().(*expr.Expr_ConstExpr); ok {
		if b, ok := c.ConstExpr.GetConstantKind().(*expr.Constant_BoolValue); ok {
			return b.BoolValue, true
		}
	}
	return false, false
}

func column(e *expr.Expr) (string, error) {
	name, ok := identName(e)
	if !ok {
		return "", fmt.Errorf("expected identifier, got %T", e.GetExprKind())
	}
	col, ok := columns[name]
	if !ok {
		return "", fmt.Errorf("unknown field: %s", name)
	}
	return col, nil
}

func constant(e *expr.Expr) (any, error) {
	c, ok := e.GetExprKind().(*expr.Expr_ConstExpr)
	if !ok {
		return nil, fmt.Errorf("expected constant, got %T", e.GetExprKind())
	}
	switch kind := c.ConstExpr.GetConstantKind().(type) {
	case *expr.Constant_StringValue:
		return kind.StringValue, nil
	case *expr.Constant_Int64Value:
		return kind.Int64Value, nil
	case *expr.Constant_DoubleValue:
		return kind.DoubleValue, nil
	default:
		return nil, fmt.Errorf("unsupported constant type: %T", kind)
	}
}

func escapeLike(value string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(value)
}
