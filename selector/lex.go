package selector

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type token struct {
	category tokenCategory
	string   string
	index    int
}

type tokenCategory int

const (
	tokenEOF tokenCategory = iota
	tokenSpace
	tokenComma
	tokenCombinator
	tokenUniversal
	tokenIdent
	tokenID
	tokenClass
	tokenPseudo
	tokenArguments
	tokenBracketOpen
	tokenBracketClose
	tokenMatcher
	tokenValue
	tokenString
	tokenBang
	tokenAt
	tokenInvalid
)

var tokenNames = map[tokenCategory]string{
	tokenEOF:          "EOF",
	tokenSpace:        "space",
	tokenComma:        "comma",
	tokenCombinator:   "combinator",
	tokenUniversal:    "universal",
	tokenIdent:        "ident",
	tokenID:           "id",
	tokenClass:        "class",
	tokenPseudo:       "pseudo",
	tokenArguments:    "arguments",
	tokenBracketOpen:  "[",
	tokenBracketClose: "]",
	tokenMatcher:      "matcher",
	tokenValue:        "value",
	tokenString:       "string",
	tokenBang:         "!",
	tokenAt:           "@",
	tokenInvalid:      "invalid",
}

const eof = -1

type stateFn func(*lexer) stateFn

// lexer never fails: anything it cannot place is emitted as tokenInvalid
// and left to the parser to skip.
type lexer struct {
	input     string
	index     int
	start     int
	width     int
	inBracket bool
	tokens    []token
}

func (c tokenCategory) String() string { return tokenNames[c] }

func lex(input string) []token {
	l := &lexer{input: strings.TrimSpace(input)}
	for state := lexSpace; state != nil; state = state(l) {
	}
	return l.tokens
}

func (l *lexer) next() rune {
	if l.index >= len(l.input) {
		l.width = 0
		return eof
	}
	r, w := utf8.DecodeRuneInString(l.input[l.index:])
	l.width = w
	l.index += l.width
	return r
}

func (l *lexer) peek() rune {
	if l.index >= len(l.input) {
		return eof
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.index:])
	return r
}

func (l *lexer) backup() {
	l.index -= l.width
}

func (l *lexer) emit(c tokenCategory) {
	switch s := l.input[l.start:l.index]; c {
	case tokenIdent, tokenID, tokenClass, tokenPseudo, tokenValue, tokenString:
		l.tokens = append(l.tokens, token{c, Unescape(s), l.start})
	default:
		l.tokens = append(l.tokens, token{c, s, l.start})
	}
	l.start = l.index
}

func (l *lexer) ignore() {
	l.start = l.index
}

func (l *lexer) acceptRun(f func(rune) bool) {
	for r := l.next(); r != eof && f(r); r = l.next() {
	}
	l.backup()
}

func lexSpace(l *lexer) stateFn {
	if isSeparator(l.peek()) {
		l.acceptRun(isSeparator)
		l.emit(tokenSpace)
	}
	switch r := l.next(); {
	case r == eof:
		l.emit(tokenEOF)
		return nil
	case r == ',':
		l.emit(tokenComma)
	case isMatchChar(r) && l.peek() == '=':
		l.next()
		return lexMatcher
	case r == '=':
		return lexMatcher
	case isCombinatorChar(r):
		l.emit(tokenCombinator)
	case r == '!':
		l.emit(tokenBang)
	case r == '@':
		l.emit(tokenAt)
	case r == '[':
		l.inBracket = true
		l.emit(tokenBracketOpen)
	case r == ']':
		l.inBracket = false
		l.emit(tokenBracketClose)
	case r == '(':
		l.backup()
		return lexArguments
	case r == '*':
		l.emit(tokenUniversal)
	case r == '.':
		return lexName(tokenClass)
	case r == '#':
		return lexName(tokenID)
	case r == ':':
		return lexPseudo
	case r == '"', r == '\'':
		l.backup()
		return lexString
	case isNameChar(r):
		l.backup()
		return lexIdent
	default:
		l.emit(tokenInvalid)
	}
	return lexSpace
}

// isNameChar checks whether rune r may be part of a name. Unlike css
// identifiers, names may start with a digit or hyphen.
// [_a-z0-9-]|{nonascii}|{escape}
func isNameChar(r rune) bool {
	return 'a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || '0' <= r && r <= '9' ||
		r == '_' || r == '-' || r == '\\' || r > 127
}

func isHexDigit(r rune) bool {
	return 'a' <= r && r <= 'f' || 'A' <= r && r <= 'F' || '0' <= r && r <= '9'
}

func isWhitespace(r rune) bool     { return strings.ContainsRune(" \t\f\r\n", r) }
func isSeparator(r rune) bool      { return r == '/' || isWhitespace(r) }
func isMatchChar(r rune) bool      { return strings.ContainsRune("!^$*~|", r) }
func isCombinatorChar(r rune) bool { return strings.ContainsRune(">+~", r) }
func isDigit(r rune) bool          { return '0' <= r && r <= '9' }

func acceptNameChars(l *lexer) {
	for {
		switch r := l.next(); {
		case r == '\\':
			if !isHexDigit(l.peek()) {
				l.next()
				continue
			}
			for i := 0; i < 6 && isHexDigit(l.peek()); i++ {
				l.next()
			}
			if unicode.IsSpace(l.peek()) {
				l.next()
			}
		case r != eof && isNameChar(r):
		default:
			l.backup()
			return
		}
	}
}

func lexIdent(l *lexer) stateFn {
	acceptNameChars(l)
	l.emit(tokenIdent)
	return lexSpace
}

// lexName lexes the name following a '.' or '#'. A bare prefix is invalid.
func lexName(c tokenCategory) stateFn {
	return func(l *lexer) stateFn {
		if !isNameChar(l.peek()) {
			l.emit(tokenInvalid)
			return lexSpace
		}
		l.ignore()
		acceptNameChars(l)
		l.emit(c)
		return lexSpace
	}
}

// lexPseudo keeps a second colon as part of the name so pseudo elements
// (::before) end up as unknown pseudo classes.
func lexPseudo(l *lexer) stateFn {
	l.ignore()
	if l.peek() == ':' {
		l.next()
	}
	acceptNameChars(l)
	l.emit(tokenPseudo)
	return lexSpace
}

func lexMatcher(l *lexer) stateFn {
	l.emit(tokenMatcher)
	if l.inBracket {
		return lexValue
	}
	return lexSpace
}

// lexValue lexes the right hand side of an attribute matcher: either a
// quoted string or everything up to the closing bracket or whitespace.
func lexValue(l *lexer) stateFn {
	l.acceptRun(isWhitespace)
	l.ignore()
	if r := l.peek(); r == '"' || r == '\'' {
		return lexString
	}
	for {
		switch r := l.next(); {
		case r == '\\':
			l.next()
		case r == eof || r == ']' || isWhitespace(r):
			l.backup()
			l.emit(tokenValue)
			return lexSpace
		}
	}
}

// lexString emits the unquoted content of a string. Unterminated strings
// run to the end of the input.
func lexString(l *lexer) stateFn {
	quote := l.next()
	l.ignore()
	for {
		switch r := l.peek(); {
		case r == eof:
			l.emit(tokenString)
			return lexSpace
		case r == quote:
			l.emit(tokenString)
			l.next()
			l.ignore()
			return lexSpace
		case r == '\\':
			l.next()
			l.next()
		default:
			l.next()
		}
	}
}

func lexArguments(l *lexer) stateFn {
	l.next()
	for lvl := 1; lvl != 0; {
		switch r := l.next(); r {
		case eof:
			l.emit(tokenArguments)
			return lexSpace
		case '(':
			lvl++
		case ')':
			lvl--
		case '\\':
			l.next()
		case '"', '\'':
			for c := l.next(); c != r && c != eof; c = l.next() {
				if c == '\\' {
					l.next()
				}
			}
		}
	}
	l.emit(tokenArguments)
	return lexSpace
}
