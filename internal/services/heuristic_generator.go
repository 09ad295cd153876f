package services

import (
	"context"
	"math/rand/v2"
	"strings"
	"unicode"
	"unicode/utf8"

	"momolearn-backend/internal/models"
)

const (
	heuristicMinLen    = 50
	heuristicMaxLen    = 220
	heuristicMinTokens = 6

	heuristicStem        = "Which statement comes from the script?"
	heuristicExplanation = "Original sentence from the uploaded script."
)

var heuristicDecoys = [3]string{
	"This statement does not appear in the script.",
	"None of the other answers is correct.",
	"The statement is fabricated.",
}

// Trailing-dot words that do not end a sentence, lower-cased.
var sentenceAbbreviations = map[string]bool{
	"z.b.": true, "d.h.": true, "bzw.": true, "usw.": true, "vgl.": true,
	"ca.": true, "evtl.": true, "ggf.": true, "bspw.": true, "inkl.": true,
	"nr.": true, "s.": true, "abb.": true, "dr.": true, "prof.": true,
	"e.g.": true, "i.e.": true, "etc.": true, "vs.": true, "cf.": true,
	"fig.": true, "mr.": true, "mrs.": true, "ms.": true, "no.": true,
}

// HeuristicGenerator builds "which sentence is real" questions from the
// source text without any external service.
type HeuristicGenerator struct {
	shuffle func(n int, swap func(i, j int))
}

func NewHeuristicGenerator() *HeuristicGenerator {
	return &HeuristicGenerator{shuffle: rand.Shuffle}
}

func (g *HeuristicGenerator) Name() string { return "heuristic" }

// Generate returns at most count questions, one per usable sentence in
// text order.
func (g *HeuristicGenerator) Generate(ctx context.Context, text string, count int) ([]models.QuestionCandidate, error) {
	candidates := usableSentences(text)
	if count < len(candidates) {
		candidates = candidates[:max(count, 0)]
	}

	out := make([]models.QuestionCandidate, 0, len(candidates))
	for _, sentence := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		correct := truncateSentence(sentence)
		choices := []string{correct, heuristicDecoys[0], heuristicDecoys[1], heuristicDecoys[2]}
		g.shuffle(len(choices), func(i, j int) { choices[i], choices[j] = choices[j], choices[i] })

		idx := 0
		for i, c := range choices {
			if c == correct {
				idx = i
				break
			}
		}
		out = append(out, models.QuestionCandidate{
			Stem:         heuristicStem,
			Choices:      choices,
			CorrectIndex: idx,
			Explanation:  heuristicExplanation,
		})
	}
	return out, nil
}

func usableSentences(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range splitSentences(text) {
		s = strings.TrimSpace(s)
		if !looksLikeStatement(s) || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func looksLikeStatement(s string) bool {
	if utf8.RuneCountInString(s) < heuristicMinLen {
		return false
	}
	if strings.HasSuffix(s, ":") {
		return false
	}
	if len(strings.Fields(s)) < heuristicMinTokens {
		return false
	}
	lower := strings.ToLower(s)
	if strings.Contains(s, "©") || strings.Contains(lower, "abbildung") || strings.Contains(lower, "figure") {
		return false
	}
	return true
}

func truncateSentence(s string) string {
	r := []rune(s)
	if len(r) <= heuristicMaxLen {
		return s
	}
	return string(r[:heuristicMaxLen-3]) + "..."
}

// splitSentences breaks text at ., !, ? or … followed by whitespace and a
// character that is not lower-case. Known abbreviations and single-letter
// initials do not end a sentence.
func splitSentences(text string) []string {
	runes := []rune(text)
	var out []string
	start := 0

	for i := 0; i < len(runes); i++ {
		if !isSentenceTerminator(runes[i]) {
			continue
		}
		end := i + 1
		for end < len(runes) && (isSentenceTerminator(runes[end]) || isSentenceCloser(runes[end])) {
			end++
		}
		if end < len(runes) && !unicode.IsSpace(runes[end]) {
			i = end - 1
			continue
		}
		next := end
		for next < len(runes) && unicode.IsSpace(runes[next]) {
			next++
		}
		if next < len(runes) && unicode.IsLower(runes[next]) {
			i = end - 1
			continue
		}
		if runes[i] == '.' && end == i+1 && endsWithAbbreviation(runes[start:end]) {
			i = end - 1
			continue
		}

		if s := strings.TrimSpace(string(runes[start:end])); s != "" {
			out = append(out, s)
		}
		start = next
		i = next - 1
	}

	if start < len(runes) {
		if s := strings.TrimSpace(string(runes[start:])); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func isSentenceTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?' || r == '…'
}

func isSentenceCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '»', '“', '”', '’':
		return true
	}
	return false
}

func endsWithAbbreviation(sentence []rune) bool {
	w := len(sentence)
	for w > 0 && !unicode.IsSpace(sentence[w-1]) {
		w--
	}
	word := strings.ToLower(strings.TrimLeft(string(sentence[w:]), "(\"'„“»"))
	if sentenceAbbreviations[word] {
		return true
	}
	r := []rune(word)
	return len(r) == 2 && unicode.IsLetter(r[0])
}
