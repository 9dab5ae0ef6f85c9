package token

import "fmt"

type TokenType int

const (
	EOF TokenType = iota
	IDENTIFIER
	INT
	FLOAT
	CHAR
	STRING

	KEYWORD_BEGIN
	AUTO
	BREAK
	CASE
	CHAR_KW
	CONST
	CONTINUE
	DEFAULT
	DO
	DOUBLE
	ELSE
	ENUM
	EXTERN
	FLOAT_KW
	FOR
	GOTO
	IF
	INLINE
	INT_KW
	LONG
	REGISTER
	RETURN
	SHORT
	SIGNED
	SIZEOF
	STATIC
	STRUCT
	SWITCH
	TYPEDEF
	UNION
	UNSIGNED
	VOID
	VOLATILE
	WHILE
	BOOL
	NORETURN
	ALIGNOF
	ATTRIBUTE
	FUNC_NAME
	KEYWORD_END

	LEFT_PAREN
	RIGHT_PAREN
	LEFT_BRACE
	RIGHT_BRACE
	LEFT_BRACKET
	RIGHT_BRACKET
	COMMA
	DOT
	ARROW
	ELLIPSIS
	COLON
	QUESTION
	TILDE
	BANG
	PLUS_PLUS
	MINUS_MINUS

	binaryop_begin
	STAR
	SLASH
	PERCENT
	PLUS
	MINUS
	SHIFT_LEFT
	SHIFT_RIGHT

	LESSER
	GREATER
	LESSER_EQUAL
	GREATER_EQUAL
	EQUAL_EQUAL
	BANG_EQUAL

	AND
	CARET
	OR
	AND_AND
	OR_OR
	binaryop_end

	assignop_begin
	EQUAL
	STAR_EQUAL
	SLASH_EQUAL
	PERCENT_EQUAL
	PLUS_EQUAL
	MINUS_EQUAL
	SHIFT_LEFT_EQUAL
	SHIFT_RIGHT_EQUAL
	AND_EQUAL
	CARET_EQUAL
	OR_EQUAL
	assignop_end

	SEMICOLON
)

func (t TokenType) IsBinaryOperator() bool {
	return t > binaryop_begin && t < binaryop_end
}

func (t TokenType) IsComparativeOperator() bool {
	return t >= LESSER && t <= BANG_EQUAL
}

func (t TokenType) IsAssignment() bool {
	return t > assignop_begin && t < assignop_end
}

func (t TokenType) IsKeyword() bool {
	return t > KEYWORD_BEGIN && t < KEYWORD_END
}

// CompoundOperator maps `op=` to the binary operator it applies.
func (t TokenType) CompoundOperator() TokenType {
	switch t {
	case STAR_EQUAL:
		return STAR
	case SLASH_EQUAL:
		return SLASH
	case PERCENT_EQUAL:
		return PERCENT
	case PLUS_EQUAL:
		return PLUS
	case MINUS_EQUAL:
		return MINUS
	case SHIFT_LEFT_EQUAL:
		return SHIFT_LEFT
	case SHIFT_RIGHT_EQUAL:
		return SHIFT_RIGHT
	case AND_EQUAL:
		return AND
	case CARET_EQUAL:
		return CARET
	case OR_EQUAL:
		return OR
	}
	return EOF
}

func (t TokenType) String() string {
	if t.IsKeyword() {
		return Keywords[t-KEYWORD_BEGIN-1]
	}
	if s, ok := punctuation[t]; ok {
		return s
	}
	switch t {
	case EOF:
		return "end of file"
	case IDENTIFIER:
		return "identifier"
	case INT, FLOAT, CHAR:
		return "constant"
	case STRING:
		return "string literal"
	}
	return fmt.Sprintf("token(%d)", int(t))
}

// IntSuffix records the `u`, `l` and `ll` suffixes of an integer literal.
type IntSuffix int

const (
	SuffixUnsigned IntSuffix = 1 << iota
	SuffixLong
	SuffixLongLong
)

type Token struct {
	Lexeme string
	Type   TokenType
	Pos    Pos

	// literal payload
	Int    uint64
	Suffix IntSuffix
	Float  float64
	Single bool
	Str    string
	Wide   bool
}

type Pos struct {
	File   string
	Line   int
	Column int
}

func (p Pos) String() string {
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

var Keywords = [...]string{
	"auto",
	"break",
	"case",
	"char",
	"const",
	"continue",
	"default",
	"do",
	"double",
	"else",
	"enum",
	"extern",
	"float",
	"for",
	"goto",
	"if",
	"inline",
	"int",
	"long",
	"register",
	"return",
	"short",
	"signed",
	"sizeof",
	"static",
	"struct",
	"switch",
	"typedef",
	"union",
	"unsigned",
	"void",
	"volatile",
	"while",
	"_Bool",
	"_Noreturn",
	"_Alignof",
	"__attribute__",
	"__func__",
}

// Alternate spellings accepted for some keywords.
var KeywordAliases = map[string]TokenType{
	"__const":      CONST,
	"__const__":    CONST,
	"__volatile__": VOLATILE,
	"__inline":     INLINE,
	"__inline__":   INLINE,
	"__signed__":   SIGNED,
	"__attribute":  ATTRIBUTE,
	"__alignof__":  ALIGNOF,
	"__FUNCTION__": FUNC_NAME,
}

// Qualifier spellings the lexer drops; they carry no meaning here.
var Ignored = map[string]bool{
	"restrict":      true,
	"__restrict":    true,
	"__restrict__":  true,
	"__extension__": true,
}

var punctuation = map[TokenType]string{
	LEFT_PAREN:        "(",
	RIGHT_PAREN:       ")",
	LEFT_BRACE:        "{",
	RIGHT_BRACE:       "}",
	LEFT_BRACKET:      "[",
	RIGHT_BRACKET:     "]",
	COMMA:             ",",
	DOT:               ".",
	ARROW:             "->",
	ELLIPSIS:          "...",
	COLON:             ":",
	QUESTION:          "?",
	TILDE:             "~",
	BANG:              "!",
	PLUS_PLUS:         "++",
	MINUS_MINUS:       "--",
	STAR:              "*",
	SLASH:             "/",
	PERCENT:           "%",
	PLUS:              "+",
	MINUS:             "-",
	SHIFT_LEFT:        "<<",
	SHIFT_RIGHT:       ">>",
	LESSER:            "<",
	GREATER:           ">",
	LESSER_EQUAL:      "<=",
	GREATER_EQUAL:     ">=",
	EQUAL_EQUAL:       "==",
	BANG_EQUAL:        "!=",
	AND:               "&",
	CARET:             "^",
	OR:                "|",
	AND_AND:           "&&",
	OR_OR:             "||",
	EQUAL:             "=",
	STAR_EQUAL:        "*=",
	SLASH_EQUAL:       "/=",
	PERCENT_EQUAL:     "%=",
	PLUS_EQUAL:        "+=",
	MINUS_EQUAL:       "-=",
	SHIFT_LEFT_EQUAL:  "<<=",
	SHIFT_RIGHT_EQUAL: ">>=",
	AND_EQUAL:         "&=",
	CARET_EQUAL:       "^=",
	OR_EQUAL:          "|=",
	SEMICOLON:         ";",
}
