package convert

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
)

// ConvertDocx converts a Word document to Markdown: headings from
// paragraph styles, bullet lists, inline bold/italic, and tables.
func ConvertDocx(data []byte, filename string) (*Result, error) {
	archive, err := openZip(data)
	if err != nil {
		return nil, fmt.Errorf("parse word document: %w", err)
	}
	docXML, err := readZipPart(archive, "word/document.xml")
	if err != nil {
		return nil, fmt.Errorf("parse word document: %w", err)
	}

	var lines []string
	decoder := xml.NewDecoder(bytes.NewReader(docXML))
	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch start.Name.Local {
		case "p":
			var para wmlParagraph
			if err := decoder.DecodeElement(&para, &start); err != nil {
				return nil, fmt.Errorf("parse word document: %w", err)
			}
			if line := para.markdown(); line != "" {
				lines = append(lines, line)
			}
		case "tbl":
			var table wmlTable
			if err := decoder.DecodeElement(&table, &start); err != nil {
				return nil, fmt.Errorf("parse word document: %w", err)
			}
			if md := table.markdown(); md != "" {
				lines = append(lines, "", md, "")
			}
		}
	}

	return markdownResult(strings.Join(lines, "\n"), filename), nil
}

type wmlParagraph struct {
	Style struct {
		Val string `xml:"val,attr"`
	} `xml:"pPr>pStyle"`
	Runs []wmlRun `xml:"r"`
}

type wmlRun struct {
	Bold   *struct{} `xml:"rPr>b"`
	Italic *struct{} `xml:"rPr>i"`
	Text   []string  `xml:"t"`
}

func (p *wmlParagraph) plainText() string {
	var sb strings.Builder
	for _, run := range p.Runs {
		for _, t := range run.Text {
			sb.WriteString(t)
		}
	}
	return sb.String()
}

func (p *wmlParagraph) markdown() string {
	text := strings.TrimSpace(p.plainText())
	if text == "" {
		return ""
	}

	style := strings.ToLower(p.Style.Val)
	switch {
	case strings.Contains(style, "heading1"), strings.Contains(style, "title"):
		return "# " + text
	case strings.Contains(style, "heading2"):
		return "## " + text
	case strings.Contains(style, "heading3"):
		return "### " + text
	case strings.Contains(style, "heading4"):
		return "#### " + text
	case strings.Contains(style, "list"), strings.Contains(style, "bullet"):
		return "- " + text
	}

	return p.inlineFormatted()
}

// inlineFormatted renders runs with bold/italic markers.
func (p *wmlParagraph) inlineFormatted() string {
	var sb strings.Builder
	for _, run := range p.Runs {
		text := strings.Join(run.Text, "")
		if text == "" {
			continue
		}
		switch {
		case run.Bold != nil && run.Italic != nil:
			sb.WriteString("***" + text + "***")
		case run.Bold != nil:
			sb.WriteString("**" + text + "**")
		case run.Italic != nil:
			sb.WriteString("*" + text + "*")
		default:
			sb.WriteString(text)
		}
	}
	return sb.String()
}

type wmlTable struct {
	Rows []struct {
		Cells []struct {
			Paragraphs []wmlParagraph `xml:"p"`
		} `xml:"tc"`
	} `xml:"tr"`
}

func (t *wmlTable) markdown() string {
	var rows [][]string
	for _, row := range t.Rows {
		var cells []string
		for _, cell := range row.Cells {
			var texts []string
			for i := range cell.Paragraphs {
				if text := strings.TrimSpace(cell.Paragraphs[i].plainText()); text != "" {
					texts = append(texts, text)
				}
			}
			cells = append(cells, cellText(strings.Join(texts, " ")))
		}
		rows = append(rows, cells)
	}
	return markdownTable(rows)
}
