package telegram

import "strings"

// maxMessageBytes leaves margin under Telegram's 4096-char limit.
const maxMessageBytes = 3800

// splitMessage splits text into chunks safe for Telegram, preferring line
// boundaries and falling back to per-rune splitting for oversized lines.
// Assumes the content is already HTML-safe so splitting cannot break entity
// parsing.
func splitMessage(text string) []string {
	if len(text) <= maxMessageBytes {
		return []string{text}
	}

	var chunks []string
	var cur strings.Builder

	flush := func() {
		if cur.Len() > 0 {
			chunks = append(chunks, strings.TrimRight(cur.String(), "\n"))
			cur.Reset()
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		if line == "" {
			continue
		}

		if len(line) > maxMessageBytes {
			flush()
			var buf strings.Builder
			for _, r := range line {
				if buf.Len()+len(string(r)) > maxMessageBytes {
					chunks = append(chunks, strings.TrimRight(buf.String(), "\n"))
					buf.Reset()
				}
				buf.WriteRune(r)
			}
			if buf.Len() > 0 {
				chunks = append(chunks, strings.TrimRight(buf.String(), "\n"))
			}
			continue
		}

		if cur.Len()+len(line) > maxMessageBytes {
			flush()
		}
		cur.WriteString(line)
	}

	if strings.TrimSpace(cur.String()) != "" {
		chunks = append(chunks, strings.TrimRight(cur.String(), "\n"))
	}
	return chunks
}
