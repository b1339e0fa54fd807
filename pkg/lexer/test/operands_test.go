package lexer_test

import (
	"jsstack/pkg/lexer"
	"testing"
)

func TestOperands(t *testing.T) {
	tests := []struct {
		input   string
		typ     lexer.TokenType
		literal string
	}{
		{"l0", lexer.LOCAL, "0"},
		{"l12", lexer.LOCAL, "12"},
		{"a3", lexer.ARG, "3"},
		{"#42", lexer.IMM, "42"},
		{"#-42", lexer.IMM, "-42"},
		{"#2.5e-3", lexer.IMM, "2.5e-3"},
		{"#1E+5", lexer.IMM, "1E+5"},
		{"#null", lexer.IMM, "null"},
		{"#undefined", lexer.IMM, "undefined"},
		{"loop:", lexer.LABEL, "loop"},
		{".func", lexer.DIRECTIVE, "func"},
		{"3.14", lexer.NUM, "3.14"},
		{"local0", lexer.ID, ""},
		{"args", lexer.ID, ""},
	}

	for _, test := range tests {
		tok := lexer.NewLexer(test.input).NextToken()
		if tok.Type != test.typ {
			t.Errorf("%s: expected %s, got %s", test.input, test.typ, tok.Type)
		}
		if tok.Lexeme != test.input {
			t.Errorf("%s: expected lexeme %q, got %q", test.input, test.input, tok.Lexeme)
		}
		if test.literal != "" && tok.Literal != test.literal {
			t.Errorf("%s: expected literal %q, got %q", test.input, test.literal, tok.Literal)
		}
	}
}

func TestPositions(t *testing.T) {
	src := ".func f\n  mov l0, #1\n"
	l := lexer.NewLexer(src)

	var mov lexer.Token
	for tok := l.NextToken(); tok.Type != lexer.EOF; tok = l.NextToken() {
		if tok.Lexeme == "mov" {
			mov = tok
		}
	}

	if got := mov.Pos.String(); got != "2:3" {
		t.Errorf("expected position 2:3, got %s", got)
	}
	if got := mov.Pos.SourceLine(src); got != "  mov l0, #1" {
		t.Errorf("unexpected source line %q", got)
	}
	if got := (lexer.Position{Line: 9}).SourceLine(src); got != "" {
		t.Errorf("expected empty line past the end, got %q", got)
	}
}
