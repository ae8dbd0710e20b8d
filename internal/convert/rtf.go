package convert

import (
	"regexp"
	"strconv"
	"strings"
)

// ConvertRtf converts a rich text document to Markdown by stripping
// control codes. Paragraph structure survives; embedded images and
// style tables are discarded.
func ConvertRtf(data []byte, filename string) (*Result, error) {
	text := stripRTF(string(data))
	if strings.TrimSpace(text) == "" {
		text = "*Empty document*"
	}
	return markdownResult(text, filename), nil
}

var (
	rtfControlWordRe = regexp.MustCompile(`^\\([a-z]+)(-?\d+)? ?`)
	rtfSpacesRe      = regexp.MustCompile(`[ \t]+`)
	rtfNewlinesRe    = regexp.MustCompile(`\n{3,}`)
)

var rtfSkipGroups = []string{`\pict`, `\fonttbl`, `\colortbl`, `\stylesheet`, `\*\`}

// stripRTF walks the RTF token stream and keeps only document text.
// Groups holding non-content data (fonts, colors, embedded images) are
// skipped wholesale.
func stripRTF(text string) string {
	if !strings.HasPrefix(text, `{\rtf`) {
		return text
	}

	var out strings.Builder
	skipDepth := 0
	i := 0

	for i < len(text) {
		ch := text[i]

		switch ch {
		case '{':
			end := i + 20
			if end > len(text) {
				end = len(text)
			}
			rest := text[i:end]
			skip := skipDepth > 0
			for _, marker := range rtfSkipGroups {
				if strings.Contains(rest, marker) {
					skip = true
					break
				}
			}
			if skip {
				skipDepth++
			}
			i++
			continue
		case '}':
			if skipDepth > 0 {
				skipDepth--
			}
			i++
			continue
		}

		if skipDepth > 0 {
			i++
			continue
		}

		if ch == '\\' {
			if i+1 >= len(text) {
				break
			}
			next := text[i+1]

			// Escaped literals.
			if next == '\\' || next == '{' || next == '}' {
				out.WriteByte(next)
				i += 2
				continue
			}

			// Hex escape \'xx.
			if next == '\'' && i+3 < len(text) {
				if val, err := strconv.ParseInt(text[i+2:i+4], 16, 32); err == nil {
					out.WriteRune(rune(val))
				}
				i += 4
				continue
			}

			if match := rtfControlWordRe.FindStringSubmatch(text[i:]); match != nil {
				switch match[1] {
				case "par":
					out.WriteString("\n\n")
				case "line":
					out.WriteString("\n")
				case "tab":
					out.WriteString("\t")
				}
				i += len(match[0])
				continue
			}

			// Unknown control symbol.
			i++
			continue
		}

		if ch != '\r' && ch != '\n' {
			out.WriteByte(ch)
		}
		i++
	}

	result := rtfSpacesRe.ReplaceAllString(out.String(), " ")
	result = rtfNewlinesRe.ReplaceAllString(result, "\n\n")
	return strings.TrimSpace(result)
}
