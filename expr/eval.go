package expr

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// evaluator is a tree-walking interpreter over a read-only state snapshot.
type evaluator struct {
	state map[string]any
}

func (e *evaluator) eval(n node) (any, error) {
	switch n := n.(type) {
	case literalNode:
		return n.value, nil

	case variableNode:
		return e.resolveVariable(n.name)

	case arrayNode:
		items := make([]any, 0, len(n.elements))
		for _, element := range n.elements {
			value, err := e.eval(element)
			if err != nil {
				return nil, err
			}
			items = append(items, value)
		}
		return items, nil

	case indexNode:
		target, err := e.eval(n.target)
		if err != nil {
			return nil, err
		}
		index, err := e.eval(n.index)
		if err != nil {
			return nil, err
		}
		items, ok := asArray(target)
		if !ok {
			return nil, errorf("cannot index into non-array value of type %s", typeName(target))
		}
		num, ok := toNumber(index)
		if !ok {
			return nil, errorf("array index must be a number, got %s", typeName(index))
		}
		idx := int(num)
		if idx < 0 || idx >= len(items) {
			return nil, errorf("array index %d out of range (length %d)", idx, len(items))
		}
		return items[idx], nil

	case binaryNode:
		return e.evalBinary(n)

	case unaryNode:
		operand, err := e.eval(n.operand)
		if err != nil {
			return nil, err
		}
		if n.op != "not" {
			return nil, errorf("unknown unary operator %q", n.op)
		}
		return !truthy(operand), nil

	case callNode:
		fn, ok := functions[n.name]
		if !ok {
			return nil, errorf("unknown function %q", n.name)
		}
		if len(n.args) != fn.arity {
			return nil, errorf("function %q expects %d argument(s), got %d", n.name, fn.arity, len(n.args))
		}
		args := make([]any, 0, len(n.args))
		for _, argNode := range n.args {
			arg, err := e.eval(argNode)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
		}
		result, err := fn.call(args)
		if err != nil {
			var exprErr *Error
			if !asError(err, &exprErr) {
				return nil, errorf("function %q error: %s", n.name, err.Error())
			}
			return nil, err
		}
		return result, nil
	}

	return nil, errorf("unknown expression node %T", n)
}

// resolveVariable walks a dot-separated path through the state snapshot.
// A pure-digit segment addresses a sequence index; segments may also carry
// bracket suffixes like items[0].
func (e *evaluator) resolveVariable(name string) (any, error) {
	var current any = e.state
	for _, segment := range strings.Split(name, ".") {
		base, indexes, err := splitBrackets(name, segment)
		if err != nil {
			return nil, err
		}
		if base != "" {
			current, err = e.step(name, current, base)
			if err != nil {
				return nil, err
			}
		}
		for _, idx := range indexes {
			items, ok := asArray(current)
			if !ok {
				return nil, errorf("variable %q is not a list", name)
			}
			if idx < 0 || idx >= len(items) {
				return nil, errorf("index %d out of bounds for %q (length %d)", idx, name, len(items))
			}
			current = items[idx]
		}
	}
	return current, nil
}

func (e *evaluator) step(name string, current any, segment string) (any, error) {
	switch c := current.(type) {
	case map[string]any:
		value, ok := c[segment]
		if !ok {
			return nil, errorf("variable %q not found in state (missing %q)", name, segment)
		}
		return value, nil
	default:
		if items, ok := asArray(current); ok {
			idx, err := strconv.Atoi(segment)
			if err != nil {
				return nil, errorf("invalid list index %q in variable %q", segment, name)
			}
			if idx < 0 || idx >= len(items) {
				return nil, errorf("index %d out of bounds for %q (length %d)", idx, name, len(items))
			}
			return items[idx], nil
		}
		return nil, errorf("cannot access property %q on %s in variable %q", segment, typeName(current), name)
	}
}

// splitBrackets splits a path segment like "items[0][1]" into its base name
// and index list.
func splitBrackets(name, segment string) (string, []int, error) {
	open := strings.IndexByte(segment, '[')
	if open < 0 {
		return segment, nil, nil
	}
	base := segment[:open]
	rest := segment[open:]
	var indexes []int
	for rest != "" {
		if rest[0] != '[' {
			return "", nil, errorf("malformed index in variable %q", name)
		}
		close := strings.IndexByte(rest, ']')
		if close < 0 {
			return "", nil, errorf("malformed index in variable %q", name)
		}
		idx, err := strconv.Atoi(rest[1:close])
		if err != nil {
			return "", nil, errorf("invalid index %q in variable %q", rest[1:close], name)
		}
		indexes = append(indexes, idx)
		rest = rest[close+1:]
	}
	return base, indexes, nil
}

func (e *evaluator) evalBinary(n binaryNode) (any, error) {
	left, err := e.eval(n.left)
	if err != nil {
		return nil, err
	}
	right, err := e.eval(n.right)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case "||":
		if truthy(left) {
			return left, nil
		}
		return right, nil
	case "&&":
		if !truthy(left) {
			return left, nil
		}
		return right, nil
	case "==":
		return looseEqual(left, right), nil
	case "!=":
		return !looseEqual(left, right), nil
	case "<", "<=", ">", ">=":
		return compare(n.op, left, right)
	case "+":
		return add(left, right)
	case "-", "*", "/", "%":
		return arithmetic(n.op, left, right)
	case "in":
		return membership(left, right)
	case "not in":
		result, err := membership(left, right)
		if err != nil {
			return nil, err
		}
		return !result.(bool), nil
	}
	return nil, errorf("unknown binary operator %q", n.op)
}

func compare(op string, left, right any) (any, error) {
	if ln, ok := toNumber(left); ok {
		rn, ok := toNumber(right)
		if !ok {
			return nil, errorf("cannot compare %s with %s", typeName(left), typeName(right))
		}
		switch op {
		case "<":
			return ln < rn, nil
		case "<=":
			return ln <= rn, nil
		case ">":
			return ln > rn, nil
		default:
			return ln >= rn, nil
		}
	}
	if ls, ok := left.(string); ok {
		rs, ok := right.(string)
		if !ok {
			return nil, errorf("cannot compare %s with %s", typeName(left), typeName(right))
		}
		switch op {
		case "<":
			return ls < rs, nil
		case "<=":
			return ls <= rs, nil
		case ">":
			return ls > rs, nil
		default:
			return ls >= rs, nil
		}
	}
	return nil, errorf("cannot compare %s with %s", typeName(left), typeName(right))
}

func add(left, right any) (any, error) {
	if ln, ok := toNumber(left); ok {
		if rn, ok := toNumber(right); ok {
			return ln + rn, nil
		}
	}
	if ls, ok := left.(string); ok {
		if rs, ok := right.(string); ok {
			return ls + rs, nil
		}
	}
	if litems, ok := asArray(left); ok {
		if ritems, ok := asArray(right); ok {
			combined := make([]any, 0, len(litems)+len(ritems))
			combined = append(combined, litems...)
			combined = append(combined, ritems...)
			return combined, nil
		}
	}
	return nil, errorf("unsupported operands for +: %s and %s", typeName(left), typeName(right))
}

func arithmetic(op string, left, right any) (any, error) {
	ln, ok := toNumber(left)
	if !ok {
		return nil, errorf("unsupported operand for %s: %s", op, typeName(left))
	}
	rn, ok := toNumber(right)
	if !ok {
		return nil, errorf("unsupported operand for %s: %s", op, typeName(right))
	}
	switch op {
	case "-":
		return ln - rn, nil
	case "*":
		return ln * rn, nil
	case "/":
		if rn == 0 {
			return nil, errorf("division by zero")
		}
		return ln / rn, nil
	default: // %
		if rn == 0 {
			return nil, errorf("division by zero")
		}
		return math.Mod(ln, rn), nil
	}
}

// membership implements "in": substring containment when the right operand is
// textual, element containment for arrays, key membership for objects.
func membership(left, right any) (any, error) {
	switch r := right.(type) {
	case string:
		ls, ok := left.(string)
		if !ok {
			return nil, errorf("'in' requires a string on the left of a string, got %s", typeName(left))
		}
		return strings.Contains(r, ls), nil
	case map[string]any:
		key, ok := left.(string)
		if !ok {
			return false, nil
		}
		_, exists := r[key]
		return exists, nil
	}
	if items, ok := asArray(right); ok {
		for _, item := range items {
			if looseEqual(left, item) {
				return true, nil
			}
		}
		return false, nil
	}
	return nil, errorf("'in' requires a string, array, or object on the right, got %s", typeName(right))
}

// truthy follows the usual dynamic-language rules: empty strings and
// containers, zero, nil, and false are falsy.
func truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case map[string]any:
		return len(v) > 0
	}
	if n, ok := toNumber(value); ok {
		return n != 0
	}
	if items, ok := asArray(value); ok {
		return len(items) > 0
	}
	return true
}

func looseEqual(left, right any) bool {
	if ln, ok := toNumber(left); ok {
		if rn, ok := toNumber(right); ok {
			return ln == rn
		}
		return false
	}
	return reflect.DeepEqual(left, right)
}

// toNumber coerces any numeric Go type to float64.
func toNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	}
	return 0, false
}

// asArray accepts []any directly and converts other slice types
// reflectively, so state built from Go literals works too.
func asArray(value any) ([]any, bool) {
	if items, ok := value.([]any); ok {
		return items, true
	}
	rv := reflect.ValueOf(value)
	if !rv.IsValid() || rv.Kind() != reflect.Slice {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}

// stringify renders a value the way templates do: integral floats without a
// decimal point.
func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	}
	if n, ok := toNumber(value); ok {
		if n == math.Trunc(n) && math.Abs(n) < 1e15 {
			return strconv.FormatInt(int64(n), 10)
		}
		return strconv.FormatFloat(n, 'g', -1, 64)
	}
	return fmt.Sprintf("%v", value)
}

func typeName(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case map[string]any:
		return "object"
	}
	if _, ok := toNumber(value); ok {
		return "number"
	}
	if _, ok := asArray(value); ok {
		return "array"
	}
	return fmt.Sprintf("%T", value)
}
