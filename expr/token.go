package expr

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type tokenType int

const (
	tokenNumber tokenType = iota
	tokenString
	tokenBool
	tokenNull
	tokenVariable
	tokenFunction
	tokenOperator
	tokenPunct
	tokenEOF
)

func (t tokenType) String() string {
	switch t {
	case tokenNumber:
		return "number"
	case tokenString:
		return "string"
	case tokenBool:
		return "boolean"
	case tokenNull:
		return "null"
	case tokenVariable:
		return "variable"
	case tokenFunction:
		return "function"
	case tokenOperator:
		return "operator"
	case tokenPunct:
		return "punctuation"
	default:
		return "eof"
	}
}

type token struct {
	typ     tokenType
	text    string
	num     float64
	boolean bool
	pos     int
}

// operators that are matched directly in the scan, longest first so that
// "<=" wins over "<" and "==" over "=".
var symbolOperators = []string{"||", "&&", "==", "!=", "<=", ">=", "<", ">", "+", "-", "*", "/", "%"}

// tokenize performs a single left-to-right scan over the input and produces
// a flat token stream terminated by an EOF token.
func tokenize(input string) ([]token, error) {
	var tokens []token
	i := 0

	// endsExpression reports whether the most recent token can terminate an
	// expression. Used to disambiguate "-" as a sign from "-" as an operator.
	endsExpression := func() bool {
		if len(tokens) == 0 {
			return false
		}
		last := tokens[len(tokens)-1]
		switch last.typ {
		case tokenNumber, tokenString, tokenBool, tokenNull, tokenVariable:
			return true
		case tokenPunct:
			return last.text == ")" || last.text == "]"
		default:
			return false
		}
	}

	for i < len(input) {
		c := input[i]

		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			i++
			continue
		}

		// Template variable reference {{dotted.path}}
		if strings.HasPrefix(input[i:], "{{") {
			end := strings.Index(input[i:], "}}")
			if end < 0 {
				return nil, errorf("unterminated template variable at position %d", i)
			}
			name := strings.TrimSpace(input[i+2 : i+end])
			if name == "" {
				return nil, errorf("empty template variable at position %d", i)
			}
			tokens = append(tokens, token{typ: tokenVariable, text: name, pos: i})
			i += end + 2
			continue
		}

		// String literals, single or double quoted, backslash escaped
		if c == '"' || c == '\'' {
			value, width, err := scanString(input[i:], rune(c))
			if err != nil {
				return nil, errorf("%s at position %d", err.Error(), i)
			}
			tokens = append(tokens, token{typ: tokenString, text: value, pos: i})
			i += width
			continue
		}

		// Numbers, including a leading minus sign when the previous token
		// cannot end an expression
		if isDigit(c) || (c == '-' && i+1 < len(input) && isDigit(input[i+1]) && !endsExpression()) {
			start := i
			i++
			for i < len(input) && (isDigit(input[i]) || input[i] == '.') {
				i++
			}
			text := input[start:i]
			value, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, errorf("invalid number %q at position %d", text, start)
			}
			tokens = append(tokens, token{typ: tokenNumber, text: text, num: value, pos: start})
			continue
		}

		// Multi-character operators before single-character ones
		matched := false
		for _, op := range symbolOperators {
			if strings.HasPrefix(input[i:], op) {
				tokens = append(tokens, token{typ: tokenOperator, text: op, pos: i})
				i += len(op)
				matched = true
				break
			}
		}
		if matched {
			continue
		}

		if c == '(' || c == ')' || c == '[' || c == ']' || c == ',' {
			tokens = append(tokens, token{typ: tokenPunct, text: string(c), pos: i})
			i++
			continue
		}

		// Identifiers: keywords, function names, and bare variable references
		if isIdentStart(rune(c)) {
			start := i
			for i < len(input) && isIdentPart(rune(input[i])) {
				i++
			}
			word := input[start:i]
			switch strings.ToLower(word) {
			case "true":
				tokens = append(tokens, token{typ: tokenBool, text: word, boolean: true, pos: start})
			case "false":
				tokens = append(tokens, token{typ: tokenBool, text: word, boolean: false, pos: start})
			case "null":
				tokens = append(tokens, token{typ: tokenNull, text: word, pos: start})
			case "not":
				// "not in" is a single operator and must win over the
				// standalone "not" and "in" tokens
				if rest, ok := matchWord(input[i:], "in"); ok {
					tokens = append(tokens, token{typ: tokenOperator, text: "not in", pos: start})
					i += rest
				} else {
					tokens = append(tokens, token{typ: tokenOperator, text: "not", pos: start})
				}
			case "in":
				tokens = append(tokens, token{typ: tokenOperator, text: "in", pos: start})
			default:
				if _, ok := functions[word]; ok {
					tokens = append(tokens, token{typ: tokenFunction, text: word, pos: start})
				} else {
					tokens = append(tokens, token{typ: tokenVariable, text: word, pos: start})
				}
			}
			continue
		}

		return nil, errorf("unexpected character %q at position %d", string(c), i)
	}

	tokens = append(tokens, token{typ: tokenEOF, pos: i})
	return tokens, nil
}

// matchWord reports whether s starts with optional whitespace followed by the
// given word at a word boundary, returning the number of bytes consumed.
func matchWord(s, word string) (int, bool) {
	j := 0
	for j < len(s) && (s[j] == ' ' || s[j] == '\t') {
		j++
	}
	if !strings.HasPrefix(s[j:], word) {
		return 0, false
	}
	end := j + len(word)
	if end < len(s) && isIdentPart(rune(s[end])) {
		return 0, false
	}
	return end, true
}

func scanString(s string, quote rune) (string, int, error) {
	var b strings.Builder
	i := 1 // skip opening quote
	for i < len(s) {
		c := s[i]
		if rune(c) == quote {
			return b.String(), i + 1, nil
		}
		if c == '\\' && i+1 < len(s) {
			i++
			switch s[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			default:
				b.WriteByte(s[i])
			}
			i++
			continue
		}
		b.WriteByte(c)
		i++
	}
	return "", 0, fmt.Errorf("unterminated string literal")
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
