// Package tokenizer splits file text into the fixed-width trigrams stored in
// the index. Text is chunked sequentially, not with a sliding window: "abcdef"
// yields "abc" and "def".
package tokenizer

import "strings"

// Width is the number of runes in every trigram.
const Width = 3

// Token is one trigram and its index within the chunk it was cut from.
type Token struct {
	Term     string
	Position int
}

var lineBreaks = strings.NewReplacer("\n", "", "\r", "")

// Tokenize strips line breaks from text and cuts the remainder into
// consecutive Width-rune tokens. The last token is right-padded with spaces.
// Empty input yields nil.
func Tokenize(text string) []Token {
	runes := []rune(lineBreaks.Replace(text))
	if len(runes) == 0 {
		return nil
	}
	tokens := make([]Token, 0, (len(runes)+Width-1)/Width)
	for start := 0; start < len(runes); start += Width {
		end := min(start+Width, len(runes))
		term := string(runes[start:end])
		if pad := Width - (end - start); pad > 0 {
			term += strings.Repeat(" ", pad)
		}
		tokens = append(tokens, Token{
			Term:     term,
			Position: len(tokens),
		})
	}
	return tokens
}

// Complete returns the full-width tokens of text without padding a short
// tail. Query planning uses it: a padded tail would only match a file whose
// content ends there.
func Complete(text string) []string {
	runes := []rune(text)
	terms := make([]string, 0, len(runes)/Width)
	for start := 0; start+Width <= len(runes); start += Width {
		terms = append(terms, string(runes[start:start+Width]))
	}
	return terms
}
