package eval

import (
	"fmt"
	"math"
	"strings"

	"github.com/tidwall/gjson"
)

// Callable is a function value usable inside expressions.
type Callable func(args ...any) (any, error)

// Engine holds variable bindings for one evaluation scope. An Engine is
// owned by a single goroutine; scenario isolation comes from copying, not
// locking.
type Engine struct {
	vars   map[string]any
	hidden map[string]any
}

func NewEngine() *Engine {
	e := &Engine{
		vars:   make(map[string]any),
		hidden: make(map[string]any),
	}
	registerBuiltins(e)
	return e
}

func (e *Engine) Set(name string, value any) {
	e.vars[name] = value
}

// SetHidden binds a name that is resolvable in expressions but excluded
// from the Vars snapshot (__row, __num, karate and the builtins).
func (e *Engine) SetHidden(name string, value any) {
	e.hidden[name] = value
}

func (e *Engine) Get(name string) (any, bool) {
	if v, ok := e.vars[name]; ok {
		return v, true
	}
	v, ok := e.hidden[name]
	return v, ok
}

// Vars returns a snapshot copy of the visible variables.
func (e *Engine) Vars() map[string]any {
	snapshot := make(map[string]any, len(e.vars))
	for k, v := range e.vars {
		snapshot[k] = v
	}
	return snapshot
}

// SetAll merges the given variables into the visible scope.
func (e *Engine) SetAll(vars map[string]any) {
	for k, v := range vars {
		e.vars[k] = v
	}
}

// Eval parses and evaluates an expression against the current bindings.
func (e *Engine) Eval(input string) (any, error) {
	n, err := parseExpr(input)
	if err != nil {
		return nil, fmt.Errorf("parse error in %q: %w", input, err)
	}
	return e.eval(n, nil)
}

// frame is a lambda-parameter binding chained over the engine scope.
type frame struct {
	name   string
	value  any
	parent *frame
}

func (e *Engine) lookup(name string, fr *frame) (any, bool) {
	for f := fr; f != nil; f = f.parent {
		if f.name == name {
			return f.value, true
		}
	}
	return e.Get(name)
}

func (e *Engine) eval(n node, fr *frame) (any, error) {
	switch n := n.(type) {
	case *literalNode:
		return n.value, nil

	case *identNode:
		v, ok := e.lookup(n.name, fr)
		if !ok {
			return nil, fmt.Errorf("unknown variable: %s", n.name)
		}
		return v, nil

	case *arrayNode:
		arr := make([]any, len(n.elems))
		for i, elem := range n.elems {
			v, err := e.eval(elem, fr)
			if err != nil {
				return nil, err
			}
			arr[i] = v
		}
		return arr, nil

	case *objectNode:
		obj := make(map[string]any, len(n.keys))
		for i, key := range n.keys {
			v, err := e.eval(n.values[i], fr)
			if err != nil {
				return nil, err
			}
			obj[key] = v
		}
		return obj, nil

	case *memberNode:
		obj, err := e.eval(n.obj, fr)
		if err != nil {
			return nil, err
		}
		return member(obj, n.name)

	case *indexNode:
		obj, err := e.eval(n.obj, fr)
		if err != nil {
			return nil, err
		}
		idx, err := e.eval(n.idx, fr)
		if err != nil {
			return nil, err
		}
		return index(obj, idx)

	case *callNode:
		fn, err := e.eval(n.fn, fr)
		if err != nil {
			return nil, err
		}
		callable, ok := fn.(Callable)
		if !ok {
			return nil, fmt.Errorf("not a function: %v", describe(n.fn))
		}
		args := make([]any, len(n.args))
		for i, arg := range n.args {
			v, err := e.eval(arg, fr)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		return callable(args...)

	case *unaryNode:
		v, err := e.eval(n.operand, fr)
		if err != nil {
			return nil, err
		}
		switch n.op {
		case "!":
			return !IsTruthy(v), nil
		case "-":
			f, ok := toNumber(v)
			if !ok {
				return nil, fmt.Errorf("cannot negate %T", v)
			}
			return -f, nil
		}
		return nil, fmt.Errorf("unknown unary operator %q", n.op)

	case *binaryNode:
		return e.evalBinary(n, fr)

	case *ternaryNode:
		cond, err := e.eval(n.cond, fr)
		if err != nil {
			return nil, err
		}
		if IsTruthy(cond) {
			return e.eval(n.then, fr)
		}
		return e.eval(n.els, fr)

	case *lambdaNode:
		captured := fr
		body := n.body
		param := n.param
		return Callable(func(args ...any) (any, error) {
			var arg any
			if len(args) > 0 {
				arg = args[0]
			}
			return e.eval(body, &frame{name: param, value: arg, parent: captured})
		}), nil
	}
	return nil, fmt.Errorf("unsupported expression node %T", n)
}

func (e *Engine) evalBinary(n *binaryNode, fr *frame) (any, error) {
	// short-circuit operators
	if n.op == "&&" || n.op == "||" {
		left, err := e.eval(n.left, fr)
		if err != nil {
			return nil, err
		}
		if n.op == "&&" && !IsTruthy(left) {
			return false, nil
		}
		if n.op == "||" && IsTruthy(left) {
			return true, nil
		}
		right, err := e.eval(n.right, fr)
		if err != nil {
			return nil, err
		}
		return IsTruthy(right), nil
	}

	left, err := e.eval(n.left, fr)
	if err != nil {
		return nil, err
	}
	right, err := e.eval(n.right, fr)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case "==":
		return Equals(left, right), nil
	case "!=":
		return !Equals(left, right), nil
	case "+":
		if ls, ok := left.(string); ok {
			return ls + Stringify(right), nil
		}
		if rs, ok := right.(string); ok {
			return Stringify(left) + rs, nil
		}
		return numericOp(n.op, left, right)
	case "-", "*", "/", "%":
		return numericOp(n.op, left, right)
	case "<", "<=", ">", ">=":
		return compareOp(n.op, left, right)
	}
	return nil, fmt.Errorf("unknown operator %q", n.op)
}

func numericOp(op string, left, right any) (any, error) {
	l, lok := toNumber(left)
	r, rok := toNumber(right)
	if !lok || !rok {
		return nil, fmt.Errorf("operator %q needs numbers, got %T and %T", op, left, right)
	}
	switch op {
	case "+":
		return l + r, nil
	case "-":
		return l - r, nil
	case "*":
		return l * r, nil
	case "/":
		return l / r, nil
	case "%":
		return math.Mod(l, r), nil
	}
	return nil, fmt.Errorf("unknown numeric operator %q", op)
}

func compareOp(op string, left, right any) (any, error) {
	if ls, ok := left.(string); ok {
		if rs, ok := right.(string); ok {
			switch op {
			case "<":
				return ls < rs, nil
			case "<=":
				return ls <= rs, nil
			case ">":
				return ls > rs, nil
			case ">=":
				return ls >= rs, nil
			}
		}
	}
	l, lok := toNumber(left)
	r, rok := toNumber(right)
	if !lok || !rok {
		return nil, fmt.Errorf("operator %q needs numbers or strings, got %T and %T", op, left, right)
	}
	switch op {
	case "<":
		return l < r, nil
	case "<=":
		return l <= r, nil
	case ">":
		return l > r, nil
	case ">=":
		return l >= r, nil
	}
	return nil, fmt.Errorf("unknown comparison operator %q", op)
}

func member(obj any, name string) (any, error) {
	switch v := obj.(type) {
	case map[string]any:
		if name == "length" {
			if _, exists := v["length"]; !exists {
				return float64(len(v)), nil
			}
		}
		return v[name], nil
	case []any:
		if name == "length" {
			return float64(len(v)), nil
		}
		return nil, fmt.Errorf("cannot read property %q of array", name)
	case string:
		if name == "length" {
			return float64(len(v)), nil
		}
		// JSON strings are navigable directly
		if gjson.Valid(v) {
			r := gjson.Get(v, name)
			if r.Exists() {
				return r.Value(), nil
			}
			return nil, nil
		}
		return nil, fmt.Errorf("cannot read property %q of string", name)
	case nil:
		return nil, fmt.Errorf("cannot read property %q of null", name)
	}
	return nil, fmt.Errorf("cannot read property %q of %T", name, obj)
}

func index(obj, idx any) (any, error) {
	switch v := obj.(type) {
	case []any:
		i, ok := toNumber(idx)
		if !ok {
			return nil, fmt.Errorf("array index must be a number, got %T", idx)
		}
		n := int(i)
		if n < 0 || n >= len(v) {
			return nil, fmt.Errorf("array index %d out of range (len %d)", n, len(v))
		}
		return v[n], nil
	case map[string]any:
		key, ok := idx.(string)
		if !ok {
			return nil, fmt.Errorf("object key must be a string, got %T", idx)
		}
		return v[key], nil
	case string:
		if key, ok := idx.(string); ok && gjson.Valid(v) {
			r := gjson.Get(v, key)
			if r.Exists() {
				return r.Value(), nil
			}
			return nil, nil
		}
	case nil:
		return nil, fmt.Errorf("cannot index null")
	}
	return nil, fmt.Errorf("cannot index %T", obj)
}

func describe(n node) string {
	switch n := n.(type) {
	case *identNode:
		return n.name
	case *memberNode:
		return describe(n.obj) + "." + n.name
	default:
		return "expression"
	}
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// IsTruthy follows JS semantics: null, false, 0, "" are falsy, everything
// else is truthy.
func IsTruthy(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case float64:
		return v != 0
	case int:
		return v != 0
	case string:
		return v != ""
	}
	return true
}

// Equals compares two values structurally, treating all numeric types as
// equivalent.
func Equals(a, b any) bool {
	if an, ok := toNumber(a); ok {
		bn, ok := toNumber(b)
		return ok && an == bn
	}
	switch av := a.(type) {
	case nil:
		return b == nil
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equals(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			bval, exists := bv[k]
			if !exists || !Equals(v, bval) {
				return false
			}
		}
		return true
	}
	return false
}

// Stringify renders a value the way step text substitution expects:
// null renders as "null", numbers drop the trailing ".0".
func Stringify(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case string:
		return v
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1e15 {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	case bool:
		if v {
			return "true"
		}
		return "false"
	case []any:
		parts := make([]string, len(v))
		for i, elem := range v {
			parts[i] = Stringify(elem)
		}
		return "[" + strings.Join(parts, ",") + "]"
	}
	return fmt.Sprintf("%v", v)
}
