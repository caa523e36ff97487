// Package compiler turns source text into registry.CodeObjects the vm
// package can execute. It implements a deliberately partial subset of
// Python's grammar: no comprehensions, no chained comparisons, no multiple
// assignment targets, no decorators, no async, no with-statements, no
// import machinery. Lexing, parsing, and code generation run as three
// distinct passes over indentation-delimited source.
package compiler

import (
	"fmt"
	"strings"
)

type tokKind byte

const (
	tokEOF tokKind = iota
	tokNewline
	tokIndent
	tokDedent
	tokName
	tokNumber
	tokString
	tokOp
)

type token struct {
	kind tokKind
	text string
	line int
}

// lex tokenizes src into a flat token stream with explicit Indent/Dedent
// markers, mirroring Python's tokenizer closely enough to drive a
// recursive-descent parser over indentation-delimited blocks.
func lex(src string) ([]token, error) {
	var toks []token
	lines := strings.Split(src, "\n")
	indents := []int{0}
	parenDepth := 0

	for lineNo, raw := range lines {
		line := strings.TrimRight(raw, "\r")
		trimmed := strings.TrimLeft(line, " \t")
		if parenDepth == 0 {
			if trimmed == "" || strings.HasPrefix(trimmed, "#") {
				continue
			}
			indent := len(line) - len(trimmed)
			cur := indents[len(indents)-1]
			if indent > cur {
				indents = append(indents, indent)
				toks = append(toks, token{kind: tokIndent, line: lineNo + 1})
			}
			for indent < indents[len(indents)-1] {
				indents = indents[:len(indents)-1]
				toks = append(toks, token{kind: tokDedent, line: lineNo + 1})
			}
			if indent != indents[len(indents)-1] {
				return nil, fmt.Errorf("compiler: inconsistent indentation at line %d", lineNo+1)
			}
		}

		rest := trimmed
		if parenDepth > 0 {
			rest = strings.TrimLeft(line, " \t")
		}
		lineToks, newDepth, err := lexLine(rest, lineNo+1, parenDepth)
		if err != nil {
			return nil, err
		}
		parenDepth = newDepth
		toks = append(toks, lineToks...)
		if parenDepth == 0 && len(lineToks) > 0 {
			toks = append(toks, token{kind: tokNewline, line: lineNo + 1})
		}
	}
	for len(indents) > 1 {
		indents = indents[:len(indents)-1]
		toks = append(toks, token{kind: tokDedent, line: len(lines)})
	}
	toks = append(toks, token{kind: tokEOF, line: len(lines) + 1})
	return toks, nil
}

var multiCharOps = []string{
	"**=", "//=", "<<=", ">>=",
	"==", "!=", "<=", ">=", "->", "**", "//", "+=", "-=", "*=", "/=", "%=",
	"&=", "|=", "^=", "<<", ">>",
}

func lexLine(s string, lineNo, parenDepth int) ([]token, int, error) {
	var toks []token
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '#':
			i = len(s)
		case c == '(' || c == '[' || c == '{':
			parenDepth++
			toks = append(toks, token{kind: tokOp, text: string(c), line: lineNo})
			i++
		case c == ')' || c == ']' || c == '}':
			if parenDepth > 0 {
				parenDepth--
			}
			toks = append(toks, token{kind: tokOp, text: string(c), line: lineNo})
			i++
		case c == '\\' && i == len(s)-1:
			i++
		case c == '"' || c == '\'':
			str, n, err := lexString(s[i:], lineNo)
			if err != nil {
				return nil, 0, err
			}
			toks = append(toks, token{kind: tokString, text: str, line: lineNo})
			i += n
		case isDigit(c):
			n := i
			for n < len(s) && (isDigit(s[n]) || s[n] == '.' || s[n] == '_') {
				n++
			}
			toks = append(toks, token{kind: tokNumber, text: s[i:n], line: lineNo})
			i = n
		case isIdentStart(c):
			n := i
			for n < len(s) && isIdentPart(s[n]) {
				n++
			}
			toks = append(toks, token{kind: tokName, text: s[i:n], line: lineNo})
			i = n
		default:
			matched := ""
			for _, op := range multiCharOps {
				if strings.HasPrefix(s[i:], op) && len(op) > len(matched) {
					matched = op
				}
			}
			if matched != "" {
				toks = append(toks, token{kind: tokOp, text: matched, line: lineNo})
				i += len(matched)
				continue
			}
			toks = append(toks, token{kind: tokOp, text: string(c), line: lineNo})
			i++
		}
	}
	return toks, parenDepth, nil
}

func lexString(s string, line int) (string, int, error) {
	quote := s[0]
	triple := len(s) >= 3 && s[1] == quote && s[2] == quote
	var b strings.Builder
	i := 1
	if triple {
		i = 3
	}
	for i < len(s) {
		if triple {
			if i+2 < len(s) && s[i] == quote && s[i+1] == quote && s[i+2] == quote {
				return b.String(), i + 3, nil
			}
			if i+2 == len(s) && s[i] == quote && s[i+1] == quote {
				// unterminated across this line; caller treats remaining lines
				// as plain source, which this lexer doesn't join - a documented
				// limitation of this partial implementation.
			}
		} else if s[i] == quote {
			return b.String(), i + 1, nil
		}
		if s[i] == '\\' && i+1 < len(s) {
			esc, ok := unescape(s[i+1])
			if ok {
				b.WriteByte(esc)
				i += 2
				continue
			}
		}
		b.WriteByte(s[i])
		i++
	}
	return "", 0, fmt.Errorf("compiler: unterminated string literal at line %d", line)
}

func unescape(c byte) (byte, bool) {
	switch c {
	case 'n':
		return '\n', true
	case 't':
		return '\t', true
	case 'r':
		return '\r', true
	case '\\':
		return '\\', true
	case '\'':
		return '\'', true
	case '"':
		return '"', true
	case '0':
		return 0, true
	default:
		return 0, false
	}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }
