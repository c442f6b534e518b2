package telegram

import (
	"strings"
	"testing"
)

func TestSplitMessageShortPassthrough(t *testing.T) {
	chunks := splitMessage("hello")
	if len(chunks) != 1 || chunks[0] != "hello" {
		t.Errorf("Expected single untouched chunk, got %v", chunks)
	}
}

func TestSplitMessagePrefersLineBoundaries(t *testing.T) {
	line := strings.Repeat("a", 1000)
	text := strings.Join([]string{line, line, line, line, line}, "\n")

	chunks := splitMessage(text)
	if len(chunks) < 2 {
		t.Fatalf("Expected multiple chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk) > maxMessageBytes {
			t.Errorf("Chunk %d exceeds limit: %d bytes", i, len(chunk))
		}
		// Lines must not be cut mid-way when they fit on their own.
		for _, got := range strings.Split(chunk, "\n") {
			if len(got) != 1000 {
				t.Errorf("Chunk %d contains a broken line of %d bytes", i, len(got))
			}
		}
	}
}

func TestSplitMessageBreaksOversizedLine(t *testing.T) {
	text := strings.Repeat("я", 5000) // multi-byte runes, no newlines

	chunks := splitMessage(text)
	if len(chunks) < 2 {
		t.Fatalf("Expected oversized line to be split, got %d chunks", len(chunks))
	}
	var total int
	for i, chunk := range chunks {
		if len(chunk) > maxMessageBytes {
			t.Errorf("Chunk %d exceeds limit: %d bytes", i, len(chunk))
		}
		// No rune may be torn apart by the byte budget.
		if !strings.HasPrefix(chunk, "я") {
			t.Errorf("Chunk %d starts with a broken rune", i)
		}
		total += len([]rune(chunk))
	}
	if total != 5000 {
		t.Errorf("Expected all 5000 runes preserved, got %d", total)
	}
}

func TestSplitMessageKeepsAllContent(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 400; i++ {
		sb.WriteString(strings.Repeat("word ", 10))
		sb.WriteString("\n")
	}
	text := strings.TrimRight(sb.String(), "\n")

	var rejoined []string
	for _, chunk := range splitMessage(text) {
		rejoined = append(rejoined, chunk)
	}
	if got := strings.Join(rejoined, "\n"); got != text {
		t.Error("Expected chunks to rejoin into the original text")
	}
}
