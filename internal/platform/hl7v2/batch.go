package hl7v2

import "strings"

// MessageDelimiter separates the messages of a batch.
const MessageDelimiter = "#"

// SplitBatch splits a raw batch into its messages. Each chunk is trimmed and
// chunks that are empty after trimming are skipped. Message order is kept.
func SplitBatch(raw string) []string {
	var messages []string
	for _, chunk := range strings.Split(raw, MessageDelimiter) {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		messages = append(messages, chunk)
	}
	return messages
}

// SplitSegments splits one message into its segment lines. It accepts \n,
// \r\n and bare \r as line endings. Blank lines are dropped; no ordering or
// count checks are made.
func SplitSegments(message string) []string {
	text := strings.ReplaceAll(message, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
