package lexer

import (
	"fmt"
)

type TokenType int

type Token struct {
	Type    TokenType // Type of the token
	Lexeme  string    // Actual string from source code
	Literal string    // Literal value (if applicable), empty string if not
	Pos     Position  // Position in source code
}

// NewToken creates a new Token instance
func NewToken(tokenType TokenType, lexeme string, literal string, Pos Position) Token {
	return Token{
		Type:    tokenType,
		Lexeme:  lexeme,
		Literal: literal,
		Pos:     Pos,
	}
}

const (
	EOF TokenType = iota // End of file

	NEWLINE   // end of line
	DIRECTIVE // .func, .end
	LABEL     // name:

	LOCAL // l0, l1, ...
	ARG   // a0, a1, ...
	IMM   // #42, #true, #undefined

	ID  // id (identifier)
	NUM // num (number)

	ASSIGN // =
	COMMA  // ,

	ILLEGAL // illegal token
)

var tokenNames = map[TokenType]string{
	EOF:       "$",
	NEWLINE:   "newline",
	DIRECTIVE: "directive",
	LABEL:     "label",
	LOCAL:     "local",
	ARG:       "arg",
	IMM:       "immediate",
	ID:        "id",
	NUM:       "num",
	ASSIGN:    "=",
	COMMA:     ",",
	ILLEGAL:   "illegal",
}

// String returns a string representation of the Token
func (t Token) String() string {
	if t.Literal == "" {
		return fmt.Sprintf("T_{%s, %q, nil, %s}",
			t.Type, t.Lexeme, t.Pos.String())
	}

	return fmt.Sprintf("T_{%s, %q, %q, %s}",
		t.Type, t.Lexeme, t.Literal, t.Pos.String())
}

// String returns a string representation of the TokenType
func (t TokenType) String() string {
	if str, ok := tokenNames[t]; ok {
		return str
	}

	return fmt.Sprintf("UNKNOWN(%d)", int(t))
}

// IsOperand reports whether tokens of this type can be an instruction
// operand.
func (t TokenType) IsOperand() bool {
	switch t {
	case LOCAL, ARG, IMM, ID:
		return true
	default:
		return false
	}
}
