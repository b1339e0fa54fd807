package lexer

import (
	"regexp"
)

const (
	numberPattern = `\d+(\.\d+)?([eE][+-]?\d+)?`
	namePattern   = `[a-zA-Z_][a-zA-Z0-9_]*`
)

// Token regex patterns
var tokenRegexes = map[TokenType]*regexp.Regexp{
	NEWLINE:   regexp.MustCompile(`^\n`),
	DIRECTIVE: regexp.MustCompile(`^\.[a-z]+\b`),
	LABEL:     regexp.MustCompile(`^` + namePattern + `:`),
	LOCAL:     regexp.MustCompile(`^l\d+\b`),
	ARG:       regexp.MustCompile(`^a\d+\b`),
	IMM:       regexp.MustCompile(`^#(-?` + numberPattern + `|true\b|false\b|null\b|undefined\b)`),
	ASSIGN:    regexp.MustCompile(`^=`),
	COMMA:     regexp.MustCompile(`^,`),
	NUM:       regexp.MustCompile(`^` + numberPattern),
	ID:        regexp.MustCompile(`^` + namePattern),
}

var (
	whitespaceRegex = regexp.MustCompile(`^[ \t\r]+`)
	commentRegex    = regexp.MustCompile(`^(//|;)[^\n]*`)
)

// Token precedence order for matching (more specific patterns first)
var tokenPrecedenceOrder = []TokenType{
	NEWLINE, DIRECTIVE, LABEL, LOCAL, ARG, IMM, ASSIGN, COMMA, NUM, ID,
}

// Match the first token at the start of the string. Whitespace and comments
// are reported as EOF with the skipped text.
func MatchToken(s string) (TokenType, string, bool) {
	if s == "" {
		return EOF, "", false
	} else if match := whitespaceRegex.FindString(s); match != "" {
		return EOF, match, true
	} else if match := commentRegex.FindString(s); match != "" {
		return EOF, match, true
	}

	for _, tokenType := range tokenPrecedenceOrder {
		if regex, ok := tokenRegexes[tokenType]; ok {
			if match := regex.FindString(s); match != "" {
				return tokenType, match, true
			}
		}
	}

	return ILLEGAL, string(s[0]), false
}
