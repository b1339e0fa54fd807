// Package lexer tokenizes stack assembly source. The language is line
// oriented, so newlines are tokens; blanks and comments (";" or "//" to the
// end of the line) are skipped.
package lexer

type Lexer struct {
	input    string // input string to be tokenized
	length   int    // length of the input string
	position int    // current position in the input string
	line     int    // current line number for error reporting
	column   int    // current column number for error reporting
}

// Create a new lexer instance
func NewLexer(s string) *Lexer {
	return &Lexer{
		input:    s,
		length:   len(s),
		position: 0,
		line:     1,
		column:   1,
	}
}

// Get the next token from the input
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()

	// End of input
	if l.position >= l.length {
		return NewToken(EOF, "", "", l.currentPosition())
	}

	remaining := l.input[l.position:]
	tokenType, lexeme, matched := MatchToken(remaining)

	if !matched || tokenType == EOF {
		pos := l.currentPosition()
		char := string(l.input[l.position])
		l.advance(1)

		return NewToken(ILLEGAL, char, "", pos)
	}

	var literal string
	switch tokenType {
	case DIRECTIVE, IMM, LOCAL, ARG:
		// Drop the sigil: ".func" -> "func", "#3" -> "3", "l0" -> "0"
		literal = lexeme[1:]
	case LABEL:
		literal = lexeme[:len(lexeme)-1]
	case NEWLINE:
		literal = ""
	default:
		literal = lexeme
	}

	tok := NewToken(tokenType, lexeme, literal, l.currentPosition())
	l.advance(len(lexeme))

	return tok
}

// View next token without advancing the position
func (l *Lexer) Peek() Token {
	// save state
	cpos := l.position
	cline := l.line
	ccol := l.column

	token := l.NextToken()

	// restore state
	l.position = cpos
	l.line = cline
	l.column = ccol

	return token
}

// Tokenize reads every remaining token, up to and including EOF.
func (l *Lexer) Tokenize() []Token {
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens
		}
	}
}

// Skip blanks and comments, but not newlines
func (l *Lexer) skipWhitespace() {
	for l.position < l.length {
		tokenType, skipped, matched := MatchToken(l.input[l.position:])
		if !matched || tokenType != EOF {
			return
		}
		l.advance(len(skipped))
	}
}

// Advance the lexer position by n characters
func (l *Lexer) advance(n int) {
	for range n {
		if l.position >= l.length {
			break
		}

		if l.input[l.position] == '\n' {
			l.line++
			l.column = 1
		} else {
			l.column++
		}

		l.position++
	}
}

// Get the current position of the lexer
func (l *Lexer) currentPosition() Position {
	return Position{
		Line:   l.line,
		Column: l.column,
		Offset: l.position,
	}
}
