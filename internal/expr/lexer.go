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
	tokName
	tokOp
)

type token struct {
	kind tokenKind
	text string
	pos  int
	num  float64 // tokNumber only
	imag bool    // tokNumber with a j suffix
}

// operators ordered longest first so greedy matching works.
var operators = []string{
	"**", "//", "<<", ">>", "<=", ">=", "==", "!=", ":=",
	"+", "-", "*", "/", "%", "@", "&", "|", "^", "~",
	"<", ">", "(", ")", "[", "]", "{", "}", ",", ":", ".", "=", ";",
}

// lex splits src into tokens. The token set covers Python expression syntax
// so that constructs outside the allow-list are parsed and rejected by name.
func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f':
			i++
		case c == '\\' && i+1 < len(src) && src[i+1] == '\n':
			i += 2
		case c == '#':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case isDigit(c) || (c == '.' && i+1 < len(src) && isDigit(src[i+1])):
			tok, n, err := lexNumber(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)
			i += n
		case isNameStart(c):
			j := i
			for j < len(src) && isNameChar(src[j]) {
				j++
			}
			word := src[i:j]
			if j < len(src) && (src[j] == '\'' || src[j] == '"') && isStringPrefix(word) {
				tok, n, err := lexString(src, i, j)
				if err != nil {
					return nil, err
				}
				toks = append(toks, tok)
				i += n
				continue
			}
			toks = append(toks, token{kind: tokName, text: word, pos: i})
			i = j
		case c == '\'' || c == '"':
			tok, n, err := lexString(src, i, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)
			i += n
		case c >= 0x80:
			return nil, errorf(ErrSyntax, i, "unexpected non-ASCII character")
		default:
			op := matchOperator(src[i:])
			if op == "" {
				return nil, errorf(ErrSyntax, i, "unexpected character %q", c)
			}
			toks = append(toks, token{kind: tokOp, text: op, pos: i})
			i += len(op)
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(src)})
	return toks, nil
}

func matchOperator(s string) string {
	for _, op := range operators {
		if strings.HasPrefix(s, op) {
			return op
		}
	}
	return ""
}

func lexNumber(src string, start int) (token, int, error) {
	i := start
	if src[i] == '0' && i+1 < len(src) && strings.ContainsRune("xXoObB", rune(src[i+1])) {
		i += 2
		for i < len(src) && (isHexDigit(src[i]) || src[i] == '_') {
			i++
		}
		text := src[start:i]
		v, err := strconv.ParseInt(text, 0, 64)
		if err != nil {
			return token{}, 0, errorf(ErrSyntax, start, "invalid integer literal %q", text)
		}
		return token{kind: tokNumber, text: text, pos: start, num: float64(v)}, i - start, nil
	}

	for i < len(src) && (isDigit(src[i]) || src[i] == '_') {
		i++
	}
	if i < len(src) && src[i] == '.' {
		i++
		for i < len(src) && (isDigit(src[i]) || src[i] == '_') {
			i++
		}
	}
	if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
		j := i + 1
		if j < len(src) && (src[j] == '+' || src[j] == '-') {
			j++
		}
		if j < len(src) && isDigit(src[j]) {
			for j < len(src) && (isDigit(src[j]) || src[j] == '_') {
				j++
			}
			i = j
		}
	}
	text := src[start:i]
	imag := false
	if i < len(src) && (src[i] == 'j' || src[i] == 'J') {
		imag = true
		i++
	}
	if i < len(src) && isNameChar(src[i]) {
		return token{}, 0, errorf(ErrSyntax, start, "invalid numeric literal %q", src[start:i+1])
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(text, "_", ""), 64)
	if err != nil {
		return token{}, 0, errorf(ErrSyntax, start, "invalid numeric literal %q", text)
	}
	return token{kind: tokNumber, text: src[start:i], pos: start, num: v, imag: imag}, i - start, nil
}

// lexString scans a string literal whose optional prefix starts at start and
// whose opening quote is at q.
func lexString(src string, start, q int) (token, int, error) {
	quote := src[q]
	delim := string(quote)
	if strings.HasPrefix(src[q:], strings.Repeat(delim, 3)) {
		delim = strings.Repeat(delim, 3)
	}
	i := q + len(delim)
	var sb strings.Builder
	for i < len(src) {
		if strings.HasPrefix(src[i:], delim) {
			i += len(delim)
			return token{kind: tokString, text: sb.String(), pos: start}, i - start, nil
		}
		if src[i] == '\\' && i+1 < len(src) {
			sb.WriteByte(src[i+1])
			i += 2
			continue
		}
		if src[i] == '\n' && len(delim) == 1 {
			break
		}
		sb.WriteByte(src[i])
		i++
	}
	return token{}, 0, errorf(ErrSyntax, start, "unterminated string literal")
}

func isStringPrefix(word string) bool {
	switch strings.ToLower(word) {
	case "r", "u", "b", "f", "br", "rb", "fr", "rf":
		return true
	}
	return false
}

func isDigit(c byte) bool    { return c >= '0' && c <= '9' }
func isHexDigit(c byte) bool { return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') }
func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
func isNameChar(c byte) bool { return isNameStart(c) || isDigit(c) }
