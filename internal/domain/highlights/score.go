package highlights

import (
	"regexp"
	"strings"
)

var (
	reHook    = regexp.MustCompile(`(?i)\b(important|key|secret|mistake|never|always|here\s+is\s+why|remember|watch|look)\b`)
	reStepNum = regexp.MustCompile(`(?i)\bstep\s+\d+\b`)
	reWord    = regexp.MustCompile(`[\p{L}']+`)
)

var (
	positiveWords = wordSet(`amazing awesome beautiful best brilliant cool excellent excited exciting fantastic fun
		glad great happy incredible insane love loved lovely nice perfect proud win wins winner won wonderful wow yes`)
	negativeWords = wordSet(`angry awful bad broken crash disaster fail failed fear hate hated horrible hurt lose
		lost mad no pain sad scared scary terrible ugly upset worst wrong`)
	negators = wordSet(`not never no don't doesn't didn't isn't wasn't can't won't`)
)

// Emphasis returns a [0..1] attention score for spoken text: hook phrases,
// procedural step numbers, questions and exclamations.
func Emphasis(text string) float64 {
	t := strings.TrimSpace(text)
	if t == "" {
		return 0
	}
	lower := strings.ToLower(t)

	hook := float64(len(reHook.FindAllStringIndex(lower, -1))) * 0.9
	hook += float64(len(reStepNum.FindAllStringIndex(lower, -1))) * 0.4
	hook += float64(strings.Count(t, "?")) * 0.7
	hook += float64(strings.Count(t, "!")) * 0.3

	return clamp(hook, 0, 10) / 10
}

// Polarity returns a lexicon sentiment in [-1..1]. ok is false when the text
// carries no sentiment-bearing words at all.
func Polarity(text string) (score float64, ok bool) {
	words := reWord.FindAllString(strings.ToLower(text), -1)
	if len(words) == 0 {
		return 0, false
	}

	var sum float64
	hits := 0
	for i, w := range words {
		v := 0.0
		switch {
		case positiveWords[w]:
			v = 1
		case negativeWords[w]:
			v = -1
		default:
			continue
		}
		// a negator right before flips the word
		if i > 0 && negators[words[i-1]] {
			v = -v
		}
		sum += v
		hits++
	}
	if hits == 0 {
		return 0, false
	}
	return clamp(sum/float64(hits), -1, 1), true
}

func wordSet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.Fields(s) {
		out[w] = true
	}
	return out
}

func clamp(x, a, b float64) float64 {
	if x < a {
		return a
	}
	if x > b {
		return b
	}
	return x
}
