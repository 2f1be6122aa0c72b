package utils

import (
	"fmt"
	"strings"
)

// SplitPolicy decides how extracted text becomes indexed passages.
type SplitPolicy string

const (
	SplitSentence SplitPolicy = "sentence"
	SplitChunk    SplitPolicy = "chunk"
	SplitDocument SplitPolicy = "document"
)

func ParseSplitPolicy(s string) (SplitPolicy, error) {
	switch p := SplitPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case SplitSentence, SplitChunk, SplitDocument:
		return p, nil
	case "":
		return SplitSentence, nil
	default:
		return "", fmt.Errorf("unknown split policy %q", s)
	}
}

// Split applies policy to text. Blank passages are dropped, so a blank text yields none.
func Split(policy SplitPolicy, text string, chunkSize, overlap int) []string {
	switch policy {
	case SplitChunk:
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return SplitText(text, chunkSize, overlap)
	case SplitDocument:
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []string{text}
	default:
		return SplitSentences(text)
	}
}

// SplitSentences cuts on '.' and trims each piece.
func SplitSentences(text string) []string {
	var out []string
	for _, part := range strings.Split(text, ".") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

// SplitText splits a long string into chunks of approximately 'chunkSize' characters.
// It includes an 'overlap' to preserve context at boundaries.
func SplitText(text string, chunkSize int, overlap int) []string {
	runes := []rune(text)
	if chunkSize <= 0 || len(runes) <= chunkSize {
		return []string{text}
	}

	var chunks []string
	totalLen := len(runes)

	step := chunkSize - overlap
	if step <= 0 {
		step = chunkSize // overlap >= chunkSize
	}

	for i := 0; i < totalLen; i += step {
		end := i + chunkSize
		if end > totalLen {
			end = totalLen
		}

		chunks = append(chunks, string(runes[i:end]))

		if end == totalLen {
			break
		}
	}

	return chunks
}
