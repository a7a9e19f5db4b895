package expr

import (
	"strings"
	"unicode/utf8"
)

// functions is the fixed registry of callable helpers. The set is closed:
// the tokenizer classifies these names as function tokens, everything else
// as variable references.
var functions map[string]function

type function struct {
	arity int
	call  func(args []any) (any, error)
}

func init() {
	functions = map[string]function{
		"contains": {2, func(args []any) (any, error) {
			return strings.Contains(stringify(args[0]), stringify(args[1])), nil
		}},
		"startsWith": {2, func(args []any) (any, error) {
			return strings.HasPrefix(stringify(args[0]), stringify(args[1])), nil
		}},
		"endsWith": {2, func(args []any) (any, error) {
			return strings.HasSuffix(stringify(args[0]), stringify(args[1])), nil
		}},
		"isString": {1, func(args []any) (any, error) {
			_, ok := args[0].(string)
			return ok, nil
		}},
		"isNumber": {1, func(args []any) (any, error) {
			_, ok := toNumber(args[0])
			return ok, nil
		}},
		"isObject": {1, func(args []any) (any, error) {
			_, ok := args[0].(map[string]any)
			return ok, nil
		}},
		"isArray": {1, func(args []any) (any, error) {
			_, ok := asArray(args[0])
			return ok, nil
		}},
		"length": {1, func(args []any) (any, error) {
			switch v := args[0].(type) {
			case string:
				return float64(utf8.RuneCountInString(v)), nil
			case map[string]any:
				return float64(len(v)), nil
			}
			if items, ok := asArray(args[0]); ok {
				return float64(len(items)), nil
			}
			return nil, errorf("length() expects string, array, or object, got %s", typeName(args[0]))
		}},
		"upper": {1, func(args []any) (any, error) {
			return strings.ToUpper(stringify(args[0])), nil
		}},
		"lower": {1, func(args []any) (any, error) {
			return strings.ToLower(stringify(args[0])), nil
		}},
		"trim": {1, func(args []any) (any, error) {
			return strings.TrimSpace(stringify(args[0])), nil
		}},
	}
}
