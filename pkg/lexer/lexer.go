package lexer

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kartiknair/mycc/pkg/token"
)

// Error is a malformed-token failure. The lexer has already skipped the
// offending input when it returns one, so scanning may continue. A bad
// escape sequence still yields its string or character token alongside
// the Error.
type Error struct {
	Pos token.Pos
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

type Lexer struct {
	source    string
	file      string
	start     int
	current   int
	line      int
	lineBegin int

	startLine int
	startCol  int
	atBOL     bool
}

func New(file, source string) *Lexer {
	return &Lexer{source: source, file: file, line: 1, atBOL: true}
}

func (l *Lexer) isAtEnd() bool {
	return l.current >= len(l.source)
}

func (l *Lexer) advance() byte {
	l.current++
	return l.source[l.current-1]
}

func (l *Lexer) match(c byte) bool {
	if l.isAtEnd() || l.source[l.current] != c {
		return false
	}
	l.current++
	return true
}

// peek returns 0 past the end of input instead of failing.
func (l *Lexer) peek(distanceOptionalShim ...int) byte {
	distance := 0
	if len(distanceOptionalShim) > 0 {
		distance = distanceOptionalShim[0]
	}
	if l.current+distance >= len(l.source) {
		return 0
	}
	return l.source[l.current+distance]
}

func (l *Lexer) newline() {
	l.line++
	l.lineBegin = l.current
	l.atBOL = true
}

func (l *Lexer) pos() token.Pos {
	return token.Pos{File: l.file, Line: l.startLine, Column: l.startCol}
}

func (l *Lexer) errorf(format string, args ...interface{}) *Error {
	return &Error{Pos: l.pos(), Msg: fmt.Sprintf(format, args...)}
}

func (l *Lexer) makeToken(typ token.TokenType) token.Token {
	return token.Token{
		Lexeme: l.source[l.start:l.current],
		Type:   typ,
		Pos:    l.pos(),
	}
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func isHexDigit(b byte) bool {
	return isDigit(b) || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

func isAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b == '_' || b == '$'
}

func isAlphaNumeric(b byte) bool {
	return isAlpha(b) || isDigit(b)
}

// skipTrivia skips whitespace, comments and preprocessor line markers.
func (l *Lexer) skipTrivia() error {
	for !l.isAtEnd() {
		c := l.peek()
		switch {
		case c == '\n':
			l.advance()
			l.newline()
		case c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v':
			l.advance()
		case c == '/' && l.peek(1) == '/':
			for !l.isAtEnd() && l.peek() != '\n' {
				l.advance()
			}
		case c == '/' && l.peek(1) == '*':
			l.start = l.current
			l.startLine, l.startCol = l.line, l.current-l.lineBegin+1
			l.current += 2
			for {
				if l.isAtEnd() {
					return l.errorf("unterminated comment")
				}
				if l.peek() == '*' && l.peek(1) == '/' {
					l.current += 2
					break
				}
				if l.advance() == '\n' {
					l.newline()
				}
			}
			l.atBOL = false
		case c == '#' && l.atBOL:
			l.lineMarker()
		default:
			l.atBOL = false
			return nil
		}
	}
	return nil
}

// lineMarker handles `# 12 "file.c"` and `#line 12 "file.c"` from the
// preprocessor. Other directives (#pragma, #ident) are skipped.
func (l *Lexer) lineMarker() {
	begin := l.current
	for !l.isAtEnd() && l.peek() != '\n' {
		l.advance()
	}
	fields := strings.Fields(strings.TrimPrefix(l.source[begin:l.current], "#"))
	if len(fields) > 0 && fields[0] == "line" {
		fields = fields[1:]
	}
	if len(fields) == 0 {
		return
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return
	}
	if !l.isAtEnd() {
		l.advance()
	}
	l.line = n
	l.lineBegin = l.current
	if len(fields) > 1 {
		if f, err := strconv.Unquote(fields[1]); err == nil {
			l.file = f
		}
	}
}

// Next returns the next token, or a token of type EOF at the end of input.
func (l *Lexer) Next() (token.Token, error) {
	if err := l.skipTrivia(); err != nil {
		return token.Token{}, err
	}

	l.start = l.current
	l.startLine, l.startCol = l.line, l.current-l.lineBegin+1

	if l.isAtEnd() {
		return token.Token{Type: token.EOF, Pos: l.pos()}, nil
	}

	return l.scanToken()
}

func (l *Lexer) scanToken() (token.Token, error) {
	c := l.advance()

	switch c {
	case '(':
		return l.makeToken(token.LEFT_PAREN), nil
	case ')':
		return l.makeToken(token.RIGHT_PAREN), nil
	case '{':
		return l.makeToken(token.LEFT_BRACE), nil
	case '}':
		return l.makeToken(token.RIGHT_BRACE), nil
	case '[':
		return l.makeToken(token.LEFT_BRACKET), nil
	case ']':
		return l.makeToken(token.RIGHT_BRACKET), nil
	case ',':
		return l.makeToken(token.COMMA), nil
	case ';':
		return l.makeToken(token.SEMICOLON), nil
	case ':':
		return l.makeToken(token.COLON), nil
	case '?':
		return l.makeToken(token.QUESTION), nil
	case '~':
		return l.makeToken(token.TILDE), nil
	case '.':
		if isDigit(l.peek()) {
			return l.lexNumber()
		}
		if l.peek() == '.' && l.peek(1) == '.' {
			l.current += 2
			return l.makeToken(token.ELLIPSIS), nil
		}
		return l.makeToken(token.DOT), nil
	case '&':
		if l.match('&') {
			return l.makeToken(token.AND_AND), nil
		}
		return l.pick('=', token.AND_EQUAL, token.AND), nil
	case '|':
		if l.match('|') {
			return l.makeToken(token.OR_OR), nil
		}
		return l.pick('=', token.OR_EQUAL, token.OR), nil
	case '!':
		return l.pick('=', token.BANG_EQUAL, token.BANG), nil
	case '=':
		return l.pick('=', token.EQUAL_EQUAL, token.EQUAL), nil
	case '^':
		return l.pick('=', token.CARET_EQUAL, token.CARET), nil
	case '*':
		return l.pick('=', token.STAR_EQUAL, token.STAR), nil
	case '/':
		return l.pick('=', token.SLASH_EQUAL, token.SLASH), nil
	case '%':
		return l.pick('=', token.PERCENT_EQUAL, token.PERCENT), nil
	case '+':
		if l.match('+') {
			return l.makeToken(token.PLUS_PLUS), nil
		}
		return l.pick('=', token.PLUS_EQUAL, token.PLUS), nil
	case '-':
		if l.match('-') {
			return l.makeToken(token.MINUS_MINUS), nil
		}
		if l.match('>') {
			return l.makeToken(token.ARROW), nil
		}
		return l.pick('=', token.MINUS_EQUAL, token.MINUS), nil
	case '<':
		if l.match('<') {
			return l.pick('=', token.SHIFT_LEFT_EQUAL, token.SHIFT_LEFT), nil
		}
		return l.pick('=', token.LESSER_EQUAL, token.LESSER), nil
	case '>':
		if l.match('>') {
			return l.pick('=', token.SHIFT_RIGHT_EQUAL, token.SHIFT_RIGHT), nil
		}
		return l.pick('=', token.GREATER_EQUAL, token.GREATER), nil
	case '"':
		return l.lexString(false)
	case '\'':
		return l.lexChar(false)
	}

	if c == 'L' && (l.peek() == '"' || l.peek() == '\'') {
		if l.advance() == '"' {
			return l.lexString(true)
		}
		return l.lexChar(true)
	}
	if isDigit(c) {
		return l.lexNumber()
	}
	if isAlpha(c) {
		return l.lexIdent()
	}

	return token.Token{}, l.errorf("unexpected character 0x%x", c)
}

func (l *Lexer) pick(next byte, ifMatch, otherwise token.TokenType) token.Token {
	if l.match(next) {
		return l.makeToken(ifMatch)
	}
	return l.makeToken(otherwise)
}

func (l *Lexer) lexIdent() (token.Token, error) {
	for isAlphaNumeric(l.peek()) {
		l.advance()
	}

	text := l.source[l.start:l.current]

	if token.Ignored[text] {
		return l.Next()
	}
	if typ, ok := token.KeywordAliases[text]; ok {
		return l.makeToken(typ), nil
	}
	for i, kw := range token.Keywords {
		if kw == text {
			return l.makeToken(token.TokenType(int(token.KEYWORD_BEGIN) + i + 1)), nil
		}
	}

	return l.makeToken(token.IDENTIFIER), nil
}

// escape decodes one escape sequence; the backslash is already consumed.
func (l *Lexer) escape() (byte, error) {
	if l.isAtEnd() {
		return 0, l.errorf("unterminated escape sequence")
	}
	c := l.advance()
	switch c {
	case 'n':
		return '\n', nil
	case 't':
		return '\t', nil
	case 'r':
		return '\r', nil
	case 'a':
		return 7, nil
	case 'b':
		return 8, nil
	case 'f':
		return 12, nil
	case 'v':
		return 11, nil
	case 'e':
		return 27, nil
	case '\\', '\'', '"', '?':
		return c, nil
	case 'x':
		if !isHexDigit(l.peek()) {
			return 0, l.errorf("\\x used with no following hex digits")
		}
		var v uint64
		for isHexDigit(l.peek()) {
			d, _ := strconv.ParseUint(string(l.advance()), 16, 8)
			v = v<<4 | d
		}
		if v > 0xff {
			return 0, l.errorf("hex escape sequence out of range")
		}
		return byte(v), nil
	}
	if c >= '0' && c <= '7' {
		v := int(c - '0')
		for i := 0; i < 2 && l.peek() >= '0' && l.peek() <= '7'; i++ {
			v = v<<3 | int(l.advance()-'0')
		}
		if v > 0xff {
			return 0, l.errorf("octal escape sequence out of range")
		}
		return byte(v), nil
	}
	return 0, l.errorf("unknown escape sequence '\\%c'", c)
}

func (l *Lexer) lexString(wide bool) (token.Token, error) {
	var sb strings.Builder
	var bad error

	for l.peek() != '"' {
		if l.isAtEnd() || l.peek() == '\n' {
			return token.Token{}, l.errorf("unterminated string literal")
		}
		c := l.advance()
		if c == '\\' {
			e, err := l.escape()
			if err != nil && bad == nil {
				bad = err
			}
			c = e
		}
		sb.WriteByte(c)
	}
	l.advance()

	tok := l.makeToken(token.STRING)
	tok.Str = sb.String()
	tok.Wide = wide
	return tok, bad
}

func (l *Lexer) lexChar(wide bool) (token.Token, error) {
	if l.peek() == '\'' {
		l.advance()
		return token.Token{}, l.errorf("empty character constant")
	}

	var v int64
	var bad error
	n := 0
	for l.peek() != '\'' {
		if l.isAtEnd() || l.peek() == '\n' {
			return token.Token{}, l.errorf("unterminated character constant")
		}
		c := l.advance()
		if c == '\\' {
			e, err := l.escape()
			if err != nil && bad == nil {
				bad = err
			}
			c = e
		}
		// multi-char constants pack big-endian, as gcc does
		v = v<<8 | int64(c)
		n++
	}
	l.advance()

	tok := l.makeToken(token.CHAR)
	if n == 1 && !wide {
		v = int64(int8(v))
	}
	tok.Int = uint64(v)
	tok.Wide = wide
	return tok, bad
}

func (l *Lexer) lexNumber() (token.Token, error) {
	l.current = l.start
	isFloat := false
	base := 10

	if l.peek() == '0' && (l.peek(1) == 'x' || l.peek(1) == 'X') {
		base = 16
		l.current += 2
		for isHexDigit(l.peek()) {
			l.advance()
		}
	} else {
		for isDigit(l.peek()) {
			l.advance()
		}
		if l.peek() == '.' {
			isFloat = true
			l.advance()
			for isDigit(l.peek()) {
				l.advance()
			}
		}
		if l.peek() == 'e' || l.peek() == 'E' {
			isFloat = true
			l.advance()
			if l.peek() == '+' || l.peek() == '-' {
				l.advance()
			}
			if !isDigit(l.peek()) {
				return token.Token{}, l.errorf("exponent has no digits")
			}
			for isDigit(l.peek()) {
				l.advance()
			}
		}
	}

	digits := l.source[l.start:l.current]

	if isFloat {
		tok := l.makeToken(token.FLOAT)
		switch l.peek() {
		case 'f', 'F':
			l.advance()
			tok.Single = true
		case 'l', 'L':
			l.advance()
		}
		f, err := strconv.ParseFloat(digits, 64)
		if err != nil && !isRangeErr(err) {
			return token.Token{}, l.errorf("invalid floating constant %q", digits)
		}
		tok.Lexeme = l.source[l.start:l.current]
		tok.Float = f
		return tok, nil
	}

	var suffix token.IntSuffix
	for {
		switch c := l.peek(); {
		case c == 'u' || c == 'U':
			if suffix&token.SuffixUnsigned != 0 {
				return token.Token{}, l.errorf("duplicate 'u' suffix")
			}
			suffix |= token.SuffixUnsigned
			l.advance()
			continue
		case c == 'l' || c == 'L':
			if suffix&(token.SuffixLong|token.SuffixLongLong) != 0 {
				return token.Token{}, l.errorf("duplicate 'l' suffix")
			}
			l.advance()
			if l.peek() == c {
				l.advance()
				suffix |= token.SuffixLongLong
			} else {
				suffix |= token.SuffixLong
			}
			continue
		}
		break
	}

	if isAlphaNumeric(l.peek()) {
		for isAlphaNumeric(l.peek()) {
			l.advance()
		}
		return token.Token{}, l.errorf("invalid suffix on integer constant %q", l.source[l.start:l.current])
	}

	text := digits
	if base == 16 {
		text = digits[2:]
		if text == "" {
			return token.Token{}, l.errorf("invalid hex constant")
		}
	} else if len(digits) > 1 && digits[0] == '0' {
		base = 8
		text = digits[1:]
	}

	v, err := strconv.ParseUint(text, base, 64)
	if err != nil {
		if isRangeErr(err) {
			v = math.MaxUint64
		} else {
			return token.Token{}, l.errorf("invalid digit in constant %q", digits)
		}
	}

	tok := l.makeToken(token.INT)
	tok.Int = v
	tok.Suffix = suffix
	return tok, nil
}

func isRangeErr(err error) bool {
	if ne, ok := err.(*strconv.NumError); ok {
		return ne.Err == strconv.ErrRange
	}
	return false
}
