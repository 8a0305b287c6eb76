package expr

import (
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokIdent
	tokPunct
)

type token struct {
	kind tokenKind
	text string
	num  float64
	pos  int
}

// Two-character operators must be listed before their one-character prefixes.
var punctuators = []string{
	"==", "!=", "<=", ">=", "&&", "||",
	"(", ")", "[", "]", ",", ".", "?", ":",
	"+", "-", "*", "/", "%", "!", "<", ">",
}

// lex splits src into tokens. The returned slice always ends with a tokEOF token.
func lex(src string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case isDigit(c) || (c == '.' && i+1 < len(src) && isDigit(src[i+1])):
			tok, next, err := lexNumber(src, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
			i = next
		case c == '"' || c == '\'':
			tok, next, err := lexString(src, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
			i = next
		case isIdentStart(c):
			start := i
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			tokens = append(tokens, token{kind: tokIdent, text: src[start:i], pos: start})
		default:
			matched := false
			for _, p := range punctuators {
				if strings.HasPrefix(src[i:], p) {
					tokens = append(tokens, token{kind: tokPunct, text: p, pos: i})
					i += len(p)
					matched = true
					break
				}
			}
			if !matched {
				return nil, newError(SyntaxError, i, "unexpected character %q", c)
			}
		}
	}
	return append(tokens, token{kind: tokEOF, pos: len(src)}), nil
}

func lexNumber(src string, start int) (token, int, error) {
	i := start
	for i < len(src) && isDigit(src[i]) {
		i++
	}
	if i < len(src) && src[i] == '.' {
		i++
		for i < len(src) && isDigit(src[i]) {
			i++
		}
	}
	if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
		j := i + 1
		if j < len(src) && (src[j] == '+' || src[j] == '-') {
			j++
		}
		if j < len(src) && isDigit(src[j]) {
			for j < len(src) && isDigit(src[j]) {
				j++
			}
			i = j
		}
	}
	if i < len(src) && isIdentStart(src[i]) {
		return token{}, 0, newError(SyntaxError, i, "invalid number literal %q", src[start:i+1])
	}
	text := src[start:i]
	n, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return token{}, 0, newError(SyntaxError, start, "invalid number literal %q", text)
	}
	return token{kind: tokNumber, text: text, num: n, pos: start}, i, nil
}

func lexString(src string, start int) (token, int, error) {
	quote := src[start]
	var sb strings.Builder
	i := start + 1
	for i < len(src) {
		c := src[i]
		if c == quote {
			return token{kind: tokString, text: sb.String(), pos: start}, i + 1, nil
		}
		if c == '\\' {
			if i+1 >= len(src) {
				break
			}
			switch esc := src[i+1]; esc {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '\\', '\'', '"':
				sb.WriteByte(esc)
			default:
				return token{}, 0, newError(SyntaxError, i, "unknown escape sequence \\%c", esc)
			}
			i += 2
			continue
		}
		sb.WriteByte(c)
		i++
	}
	return token{}, 0, newError(SyntaxError, start, "unterminated string literal")
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }
