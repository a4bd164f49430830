package syntax

import "fmt"

// TokenType identifies a lexical token.
type TokenType int

const (
	ILLEGAL TokenType = iota
	EOF

	IDENT
	INT
	LONG
	STRING
	CHAR

	// Keywords
	NEW
	RETURN
	THROW
	TRUE
	FALSE
	NULL
	EXTENDS
	SUPER

	// Operators
	ASSIGN     // =
	EQ         // ==
	NOT_EQ     // !=
	LT         // <
	GT         // >
	LTE        // <=
	GTE        // >=
	AND        // &&
	OR         // ||
	NOT        // !
	PLUS       // +
	MINUS      // -
	ASTERISK   // *
	SLASH      // /
	PERCENT    // %
	ARROW      // ->
	COLONCOLON // ::
	QUESTION   // ?

	// Delimiters
	COMMA     // ,
	SEMICOLON // ;
	DOT       // .
	LPAREN    // (
	RPAREN    // )
	LBRACE    // {
	RBRACE    // }
	LBRACKET  // [
	RBRACKET  // ]
)

var tokenNames = map[TokenType]string{
	ILLEGAL: "ILLEGAL", EOF: "EOF", IDENT: "identifier", INT: "integer", LONG: "long",
	STRING: "string", CHAR: "char", NEW: "new", RETURN: "return", THROW: "throw",
	TRUE: "true", FALSE: "false", NULL: "null", EXTENDS: "extends", SUPER: "super",
	ASSIGN: "=", EQ: "==", NOT_EQ: "!=", LT: "<", GT: ">", LTE: "<=", GTE: ">=",
	AND: "&&", OR: "||", NOT: "!", PLUS: "+", MINUS: "-", ASTERISK: "*", SLASH: "/",
	PERCENT: "%", ARROW: "->", COLONCOLON: "::", QUESTION: "?", COMMA: ",",
	SEMICOLON: ";", DOT: ".", LPAREN: "(", RPAREN: ")", LBRACE: "{", RBRACE: "}",
	LBRACKET: "[", RBRACKET: "]",
}

func (t TokenType) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}
	return fmt.Sprintf("token(%d)", int(t))
}

// Token is one lexeme with its byte range in the input.
type Token struct {
	Type    TokenType
	Literal string
	Pos     int
	End     int
	Line    int
	Column  int
}

var keywords = map[string]TokenType{
	"new":     NEW,
	"return":  RETURN,
	"throw":   THROW,
	"true":    TRUE,
	"false":   FALSE,
	"null":    NULL,
	"extends": EXTENDS,
	"super":   SUPER,
}

// Lexer splits pattern and expression text into tokens. Generic closers are
// always lexed as single '>' tokens so nested type arguments close cleanly.
type Lexer struct {
	input        string
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           byte // current char under examination
	line         int
	column       int
}

func NewLexer(input string) *Lexer {
	l := &Lexer{input: input, line: 1}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.column = 0
	}
	if l.readPosition >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
	l.column++
}

func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

// NextToken returns the next token, EOF at the end of input.
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()

	tok := Token{Pos: l.position, Line: l.line, Column: l.column}
	two := func(tt TokenType) Token {
		tok.Type = tt
		tok.Literal = l.input[l.position : l.position+2]
		l.readChar()
		l.readChar()
		tok.End = l.position
		return tok
	}
	one := func(tt TokenType) Token {
		tok.Type = tt
		tok.Literal = string(l.ch)
		l.readChar()
		tok.End = l.position
		return tok
	}

	switch l.ch {
	case 0:
		tok.Type = EOF
		tok.End = l.position
		return tok
	case '=':
		if l.peekChar() == '=' {
			return two(EQ)
		}
		return one(ASSIGN)
	case '!':
		if l.peekChar() == '=' {
			return two(NOT_EQ)
		}
		return one(NOT)
	case '<':
		if l.peekChar() == '=' {
			return two(LTE)
		}
		return one(LT)
	case '>':
		return one(GT)
	case '&':
		if l.peekChar() == '&' {
			return two(AND)
		}
		return one(ILLEGAL)
	case '|':
		if l.peekChar() == '|' {
			return two(OR)
		}
		return one(ILLEGAL)
	case '-':
		if l.peekChar() == '>' {
			return two(ARROW)
		}
		return one(MINUS)
	case ':':
		if l.peekChar() == ':' {
			return two(COLONCOLON)
		}
		return one(ILLEGAL)
	case '+':
		return one(PLUS)
	case '*':
		return one(ASTERISK)
	case '/':
		return one(SLASH)
	case '%':
		return one(PERCENT)
	case '?':
		return one(QUESTION)
	case ',':
		return one(COMMA)
	case ';':
		return one(SEMICOLON)
	case '.':
		return one(DOT)
	case '(':
		return one(LPAREN)
	case ')':
		return one(RPAREN)
	case '{':
		return one(LBRACE)
	case '}':
		return one(RBRACE)
	case '[':
		return one(LBRACKET)
	case ']':
		return one(RBRACKET)
	case '"':
		return l.readQuoted('"', STRING, tok)
	case '\'':
		return l.readQuoted('\'', CHAR, tok)
	}

	if isLetter(l.ch) {
		start := l.position
		for isLetter(l.ch) || isDigit(l.ch) {
			l.readChar()
		}
		tok.Literal = l.input[start:l.position]
		tok.Type = IDENT
		if kw, ok := keywords[tok.Literal]; ok {
			tok.Type = kw
		}
		tok.End = l.position
		return tok
	}
	if isDigit(l.ch) {
		start := l.position
		for isDigit(l.ch) || l.ch == '_' {
			l.readChar()
		}
		tok.Type = INT
		if l.ch == 'L' || l.ch == 'l' {
			tok.Type = LONG
			l.readChar()
		}
		tok.Literal = l.input[start:l.position]
		tok.End = l.position
		return tok
	}
	return one(ILLEGAL)
}

func (l *Lexer) readQuoted(quote byte, tt TokenType, tok Token) Token {
	start := l.position
	l.readChar()
	for l.ch != quote {
		if l.ch == 0 {
			tok.Type = ILLEGAL
			tok.Literal = l.input[start:l.position]
			tok.End = l.position
			return tok
		}
		if l.ch == '\\' {
			l.readChar()
		}
		l.readChar()
	}
	l.readChar()
	tok.Type = tt
	tok.Literal = l.input[start:l.position]
	tok.End = l.position
	return tok
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
}

func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_' || ch == '$'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

// Tokenize lexes the whole input, ending with an EOF token.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var toks []Token
	for {
		t := l.NextToken()
		toks = append(toks, t)
		if t.Type == EOF {
			return toks
		}
	}
}
