// Package shell implements PipeShell: a tokenizer and pipeline builder and
// runner for shell command lines, grounded on shell/myshell_parser.c and
// shell/myshell.c. The source's linked-list lexer and recursive-descent
// parser-by-state-machine become a slice of tokens and a single pass over
// it; the source's fork/execvp/dup2 pipeline becomes os/exec.Cmd chains.
package shell

import "strings"

const metaChars = "|><&"

// Tokenize implements lex_pipeline: splits line into words and single
// metacharacter tokens ('|', '>', '<', '&'), matching the source's state
// machine (state 0 = between words, state 1 = building a meta token,
// state 2 = building a word).
func Tokenize(line string) []string {
	var tokens []string
	var word strings.Builder

	flush := func() {
		if word.Len() > 0 {
			tokens = append(tokens, word.String())
			word.Reset()
		}
	}

	for _, r := range line {
		switch {
		case r == ' ' || r == '\t' || r == '\n':
			flush()
		case strings.ContainsRune(metaChars, r):
			flush()
			tokens = append(tokens, string(r))
		default:
			word.WriteRune(r)
		}
	}
	flush()
	return tokens
}
