package lexer

import (
	"testing"

	"github.com/alecthomas/repr"
	"github.com/kartiknair/mycc/pkg/token"
)

func lexAll(t *testing.T, src string) ([]token.Token, []error) {
	t.Helper()
	l := New("test.c", src)
	var toks []token.Token
	var errs []error
	for i := 0; i < 1000; i++ {
		tok, err := l.Next()
		if err != nil {
			errs = append(errs, err)
			if tok.Lexeme == "" {
				continue
			}
		}
		if tok.Type == token.EOF {
			return toks, errs
		}
		toks = append(toks, tok)
	}
	t.Fatalf("lexer did not reach end of input")
	return nil, nil
}

func types(toks []token.Token) []token.TokenType {
	out := make([]token.TokenType, len(toks))
	for i, tok := range toks {
		out[i] = tok.Type
	}
	return out
}

func TestPunctuation(t *testing.T) {
	tests := []struct {
		src  string
		want []token.TokenType
	}{
		{"a->b", []token.TokenType{token.IDENTIFIER, token.ARROW, token.IDENTIFIER}},
		{"x <<= 2", []token.TokenType{token.IDENTIFIER, token.SHIFT_LEFT_EQUAL, token.INT}},
		{"a>>b", []token.TokenType{token.IDENTIFIER, token.SHIFT_RIGHT, token.IDENTIFIER}},
		{"&& & &=", []token.TokenType{token.AND_AND, token.AND, token.AND_EQUAL}},
		{"|| | |=", []token.TokenType{token.OR_OR, token.OR, token.OR_EQUAL}},
		{"i++ --j", []token.TokenType{token.IDENTIFIER, token.PLUS_PLUS, token.MINUS_MINUS, token.IDENTIFIER}},
		{"f(...)", []token.TokenType{token.IDENTIFIER, token.LEFT_PAREN, token.ELLIPSIS, token.RIGHT_PAREN}},
		{"a != b == c", []token.TokenType{token.IDENTIFIER, token.BANG_EQUAL, token.IDENTIFIER, token.EQUAL_EQUAL, token.IDENTIFIER}},
		{"s.x ? y : ~z", []token.TokenType{token.IDENTIFIER, token.DOT, token.IDENTIFIER, token.QUESTION, token.IDENTIFIER, token.COLON, token.TILDE, token.IDENTIFIER}},
	}

	for _, tt := range tests {
		toks, errs := lexAll(t, tt.src)
		if len(errs) > 0 {
			t.Errorf("%q: unexpected errors %v", tt.src, errs)
			continue
		}
		if got := types(toks); repr.String(got) != repr.String(tt.want) {
			t.Errorf("%q: got %s, want %s", tt.src, repr.String(got), repr.String(tt.want))
		}
	}
}

func TestKeywords(t *testing.T) {
	toks, errs := lexAll(t, "static unsigned int x; _Bool b; while return")
	if len(errs) > 0 {
		t.Fatalf("unexpected errors %v", errs)
	}
	want := []token.TokenType{
		token.STATIC, token.UNSIGNED, token.INT_KW, token.IDENTIFIER, token.SEMICOLON,
		token.BOOL, token.IDENTIFIER, token.SEMICOLON, token.WHILE, token.RETURN,
	}
	if got := types(toks); repr.String(got) != repr.String(want) {
		t.Errorf("got %s, want %s", repr.String(got), repr.String(want))
	}
}

func TestIntegerLiterals(t *testing.T) {
	tests := []struct {
		src    string
		value  uint64
		suffix token.IntSuffix
	}{
		{"42", 42, 0},
		{"0x1F", 31, 0},
		{"017", 15, 0},
		{"0", 0, 0},
		{"10u", 10, token.SuffixUnsigned},
		{"10UL", 10, token.SuffixUnsigned | token.SuffixLong},
		{"7ll", 7, token.SuffixLongLong},
		{"99999999999999999999", ^uint64(0), 0},
	}

	for _, tt := range tests {
		toks, errs := lexAll(t, tt.src)
		if len(errs) > 0 || len(toks) != 1 {
			t.Errorf("%q: got %s, errors %v", tt.src, repr.String(toks), errs)
			continue
		}
		tok := toks[0]
		if tok.Type != token.INT || tok.Int != tt.value || tok.Suffix != tt.suffix {
			t.Errorf("%q: got %s", tt.src, repr.String(tok))
		}
	}
}

func TestFloatLiterals(t *testing.T) {
	tests := []struct {
		src    string
		value  float64
		single bool
	}{
		{"1.5", 1.5, false},
		{".25", 0.25, false},
		{"2e3", 2000, false},
		{"1.0f", 1, true},
		{"3.5L", 3.5, false},
	}

	for _, tt := range tests {
		toks, errs := lexAll(t, tt.src)
		if len(errs) > 0 || len(toks) != 1 {
			t.Errorf("%q: got %s, errors %v", tt.src, repr.String(toks), errs)
			continue
		}
		tok := toks[0]
		if tok.Type != token.FLOAT || tok.Float != tt.value || tok.Single != tt.single {
			t.Errorf("%q: got %s", tt.src, repr.String(tok))
		}
	}
}

func TestStringsAndChars(t *testing.T) {
	toks, errs := lexAll(t, `"a\tb\x41\101" 'c' '\n' L"w" '\377'`)
	if len(errs) > 0 {
		t.Fatalf("unexpected errors %v", errs)
	}
	if len(toks) != 5 {
		t.Fatalf("got %s", repr.String(toks))
	}
	if toks[0].Str != "a\tbAA" {
		t.Errorf("string: got %q", toks[0].Str)
	}
	if toks[1].Type != token.CHAR || toks[1].Int != 'c' {
		t.Errorf("char: got %s", repr.String(toks[1]))
	}
	if toks[2].Int != '\n' {
		t.Errorf("escaped char: got %d", toks[2].Int)
	}
	if !toks[3].Wide || toks[3].Str != "w" {
		t.Errorf("wide string: got %s", repr.String(toks[3]))
	}
	// plain char is signed
	if int64(toks[4].Int) != -1 {
		t.Errorf("'\\377': got %d", int64(toks[4].Int))
	}
}

func TestCommentsAndPositions(t *testing.T) {
	toks, errs := lexAll(t, "/* block\n comment */ a // line\n  b")
	if len(errs) > 0 {
		t.Fatalf("unexpected errors %v", errs)
	}
	if len(toks) != 2 {
		t.Fatalf("got %s", repr.String(toks))
	}
	if toks[0].Pos.Line != 2 || toks[1].Pos.Line != 3 || toks[1].Pos.Column != 3 {
		t.Errorf("positions: got %s and %s", toks[0].Pos, toks[1].Pos)
	}
}

func TestErrorsContinue(t *testing.T) {
	tests := []struct {
		src  string
		msg  string
		toks int
	}{
		{"a @ b", "unexpected character", 2},
		{"12abc c", "invalid suffix", 1},
		{"'' x", "empty character constant", 1},
		{`"abc`, "unterminated string", 0},
		{"1e+ y", "exponent has no digits", 1},
		{`"a\qb" ;`, "unknown escape sequence '\\q'", 2},
		{`'\q' ;`, "unknown escape sequence", 2},
	}

	for _, tt := range tests {
		toks, errs := lexAll(t, tt.src)
		if len(errs) != 1 {
			t.Errorf("%q: want one error, got %v", tt.src, errs)
			continue
		}
		if _, ok := errs[0].(*Error); !ok || !contains(errs[0].Error(), tt.msg) {
			t.Errorf("%q: got error %q, want %q", tt.src, errs[0], tt.msg)
		}
		if len(toks) != tt.toks {
			t.Errorf("%q: got tokens %s", tt.src, repr.String(toks))
		}
	}
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
