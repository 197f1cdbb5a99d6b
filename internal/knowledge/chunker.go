package knowledge

import "strings"

// MaxChunkLen caps chunk content length. Sentences are packed into a chunk
// until the next one would push it past this limit.
const MaxChunkLen = 500

// SplitContent splits text into sentence-bounded pieces of at most maxLen
// characters. A single sentence longer than maxLen is hard-split rather than
// dropped. Whitespace-only input yields no chunks.
func SplitContent(text string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = MaxChunkLen
	}

	var (
		chunks  []string
		current strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			chunks = append(chunks, s)
		}
		current.Reset()
	}

	for _, sentence := range splitSentences(text) {
		// Hard-split sentences that alone exceed the cap.
		for len(sentence) > maxLen {
			flush()
			chunks = append(chunks, strings.TrimSpace(sentence[:maxLen]))
			sentence = strings.TrimSpace(sentence[maxLen:])
		}
		if sentence == "" {
			continue
		}

		if current.Len() > 0 && current.Len()+1+len(sentence) > maxLen {
			flush()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(sentence)
	}
	flush()

	return chunks
}

// splitSentences breaks text on sentence terminators, keeping the terminator
// with its sentence. Newlines also end a sentence so list-style admin content
// chunks on its visual boundaries.
func splitSentences(text string) []string {
	var (
		sentences []string
		start     int
	)
	for i, r := range text {
		switch r {
		case '.', '!', '?', '\n':
			s := strings.TrimSpace(text[start : i+1])
			if s != "" {
				sentences = append(sentences, s)
			}
			start = i + 1
		}
	}
	if tail := strings.TrimSpace(text[start:]); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}
