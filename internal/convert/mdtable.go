package convert

import "strings"

// markdownTable renders rows as a Markdown table. The first row is the
// header; short rows are padded and long rows truncated to the header
// width.
func markdownTable(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}

	header := rows[0]
	width := len(header)
	if width == 0 {
		return ""
	}

	var lines []string
	lines = append(lines, "| "+strings.Join(header, " | ")+" |")

	seps := make([]string, width)
	for i := range seps {
		seps[i] = "---"
	}
	lines = append(lines, "| "+strings.Join(seps, " | ")+" |")

	for _, row := range rows[1:] {
		for len(row) < width {
			row = append(row, "")
		}
		lines = append(lines, "| "+strings.Join(row[:width], " | ")+" |")
	}
	return strings.Join(lines, "\n")
}

// cellText normalizes cell content for table rendering: newlines
// flatten to spaces and pipes are escaped so they cannot break the row.
func cellText(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}
