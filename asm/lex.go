package asm

import (
	"strconv"
	"strings"
)

type tokenKind int

const (
	tEOF tokenKind = iota
	tTilde
	tColon
	tSemi
	tReg    // @N
	tLabel  // $name
	tIdent  // bare word: mnemonics, function/label names, true/false
	tInt
	tFloat
	tString
)

type token struct {
	kind tokenKind
	pos  Position
	str  string
	i    int64
	f    float64
}

// lexer is a hand-rolled rune scanner, grounded in the teacher pack's ARM
// assembler lexer (lookbusy1344-arm_emulator/parser/lexer.go): a
// pos/line/column cursor reading one rune at a time, skipping whitespace
// and line comments before producing each token.
type lexer struct {
	src   []rune
	pos   int
	line  int
	col   int
	ch    rune
	diags *Diagnostics
}

func newLexer(src string, diags *Diagnostics) *lexer {
	l := &lexer{src: []rune(src), line: 1, diags: diags}
	l.advance()
	return l
}

func (l *lexer) advance() {
	if l.pos >= len(l.src) {
		l.ch = 0
		l.pos++
		return
	}
	l.ch = l.src[l.pos]
	l.pos++
	if l.ch == '\n' {
		l.line++
		l.col = 0
	} else {
		l.col++
	}
}

func (l *lexer) peek() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *lexer) curPos() Position { return Position{Line: l.line, Column: l.col} }

func isDigit(r rune) bool { return r >= '0' && r <= '9' }
func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
func isIdentPart(r rune) bool { return isIdentStart(r) || isDigit(r) }

func (l *lexer) skipWhitespaceAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' || l.ch == '\n' {
			l.advance()
		}
		if l.ch == '-' && l.peek() == '-' {
			for l.ch != '\n' && l.ch != 0 {
				l.advance()
			}
			continue
		}
		return
	}
}

// lexAll tokenizes the whole source up front; diagnostics from malformed
// input are recorded under PhaseLex and scanning continues from the next
// character so later errors are still reported in the same pass.
func lexAll(src string, diags *Diagnostics) []token {
	l := newLexer(src, diags)
	var toks []token
	for {
		tok := l.next()
		toks = append(toks, tok)
		if tok.kind == tEOF {
			return toks
		}
	}
}

func (l *lexer) next() token {
	l.skipWhitespaceAndComments()
	pos := l.curPos()

	switch {
	case l.ch == 0:
		return token{kind: tEOF, pos: pos}
	case l.ch == '~':
		l.advance()
		return token{kind: tTilde, pos: pos}
	case l.ch == ':':
		l.advance()
		return token{kind: tColon, pos: pos}
	case l.ch == ';':
		l.advance()
		return token{kind: tSemi, pos: pos}
	case l.ch == '@':
		l.advance()
		start := l.pos - 1
		for isDigit(l.ch) {
			l.advance()
		}
		text := string(l.src[start : l.pos-1])
		n, err := strconv.ParseInt(text, 10, 16)
		if err != nil || text == "" {
			l.diags.Add(PhaseLex, pos, "invalid register operand %q", "@"+text)
			return l.next()
		}
		return token{kind: tReg, pos: pos, i: n}
	case l.ch == '$':
		l.advance()
		start := l.pos - 1
		for isIdentPart(l.ch) {
			l.advance()
		}
		name := string(l.src[start : l.pos-1])
		if name == "" {
			l.diags.Add(PhaseLex, pos, "empty label reference")
			return l.next()
		}
		return token{kind: tLabel, pos: pos, str: name}
	case l.ch == '"':
		return l.lexString(pos)
	case isDigit(l.ch) || (l.ch == '-' && isDigit(l.peek())):
		return l.lexNumber(pos)
	case isIdentStart(l.ch):
		start := l.pos - 1
		for isIdentPart(l.ch) {
			l.advance()
		}
		return token{kind: tIdent, pos: pos, str: strings.ToLower(string(l.src[start : l.pos-1]))}
	default:
		l.diags.Add(PhaseLex, pos, "unexpected character %q", l.ch)
		l.advance()
		return l.next()
	}
}

func (l *lexer) lexString(pos Position) token {
	l.advance() // opening quote
	var sb strings.Builder
	for {
		if l.ch == 0 || l.ch == '\n' {
			l.diags.Add(PhaseLex, pos, "unterminated string literal")
			return token{kind: tString, pos: pos, str: sb.String()}
		}
		if l.ch == '"' {
			l.advance()
			return token{kind: tString, pos: pos, str: sb.String()}
		}
		if l.ch == '\\' {
			l.advance()
			sb.WriteRune(escapeRune(l.ch))
			l.advance()
			continue
		}
		sb.WriteRune(l.ch)
		l.advance()
	}
}

func escapeRune(r rune) rune {
	switch r {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	case '"':
		return '"'
	case '\\':
		return '\\'
	default:
		return r
	}
}

func (l *lexer) lexNumber(pos Position) token {
	start := l.pos - 1
	if l.ch == '-' {
		l.advance()
	}
	for isDigit(l.ch) {
		l.advance()
	}
	isFloat := false
	if l.ch == '.' && isDigit(l.peek()) {
		isFloat = true
		l.advance()
		for isDigit(l.ch) {
			l.advance()
		}
	}
	text := string(l.src[start : l.pos-1])
	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			l.diags.Add(PhaseLex, pos, "malformed float literal %q: %v", text, err)
			return token{kind: tFloat, pos: pos}
		}
		return token{kind: tFloat, pos: pos, f: f}
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		l.diags.Add(PhaseLex, pos, "malformed integer literal %q: %v", text, err)
		return token{kind: tInt, pos: pos}
	}
	return token{kind: tInt, pos: pos, i: n}
}
