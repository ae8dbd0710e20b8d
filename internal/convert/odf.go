package convert

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// OpenDocument namespace URIs used when matching elements.
const (
	odfOfficeNS = "urn:oasis:names:tc:opendocument:xmlns:office:1.0"
	odfTextNS   = "urn:oasis:names:tc:opendocument:xmlns:text:1.0"
	odfTableNS  = "urn:oasis:names:tc:opendocument:xmlns:table:1.0"
)

// ConvertOdt converts an OpenDocument text file to Markdown.
func ConvertOdt(data []byte, filename string) (*Result, error) {
	text, err := odfExtractText(data, "text")
	if err != nil {
		return nil, fmt.Errorf("parse odt file: %w", err)
	}
	return markdownResult(text, filename), nil
}

// ConvertOdp converts an OpenDocument presentation to Markdown.
func ConvertOdp(data []byte, filename string) (*Result, error) {
	text, err := odfExtractText(data, "presentation")
	if err != nil {
		return nil, fmt.Errorf("parse odp file: %w", err)
	}
	return markdownResult(text, filename), nil
}

// ConvertOds converts an OpenDocument spreadsheet to Markdown tables,
// one section per sheet.
func ConvertOds(data []byte, filename string) (*Result, error) {
	archive, err := openZip(data)
	if err != nil {
		return nil, fmt.Errorf("parse ods file: %w", err)
	}
	contentXML, err := readZipPart(archive, "content.xml")
	if err != nil {
		return nil, fmt.Errorf("parse ods file: %w", err)
	}

	var sections []string
	decoder := xml.NewDecoder(bytes.NewReader(contentXML))
	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "table" || start.Name.Space != odfTableNS {
			continue
		}

		var table odfTable
		if err := decoder.DecodeElement(&table, &start); err != nil {
			return nil, fmt.Errorf("parse ods file: %w", err)
		}
		name := table.Name
		if name == "" {
			name = "Sheet"
		}
		if md := table.markdown(); md != "" {
			sections = append(sections, "## "+name+"\n\n"+md)
		}
	}

	content := strings.Join(sections, "\n\n")
	if len(sections) == 0 {
		content = "*Empty spreadsheet*"
	}
	return markdownResult(content, filename), nil
}

// odfExtractText pulls headings, paragraphs, and list items from the
// document body in order.
func odfExtractText(data []byte, bodyKind string) (string, error) {
	archive, err := openZip(data)
	if err != nil {
		return "", err
	}
	contentXML, err := readZipPart(archive, "content.xml")
	if err != nil {
		return "", err
	}

	var blocks []string
	inBody := false
	decoder := xml.NewDecoder(bytes.NewReader(contentXML))
	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}

		switch el := tok.(type) {
		case xml.StartElement:
			if el.Name.Space == odfOfficeNS && el.Name.Local == bodyKind {
				inBody = true
				continue
			}
			if !inBody || el.Name.Space != odfTextNS {
				continue
			}

			switch el.Name.Local {
			case "h":
				level := 1
				for _, attr := range el.Attr {
					if attr.Name.Local == "outline-level" {
						if n, err := strconv.Atoi(attr.Value); err == nil && n > 0 {
							level = n
						}
					}
				}
				if text := odfElementText(decoder, &el); text != "" {
					blocks = append(blocks, strings.Repeat("#", level)+" "+text)
				}
			case "p":
				if text := odfElementText(decoder, &el); text != "" {
					blocks = append(blocks, text)
				}
			case "list-item":
				if text := odfElementText(decoder, &el); text != "" {
					blocks = append(blocks, "- "+text)
				}
			}
		case xml.EndElement:
			if el.Name.Space == odfOfficeNS && el.Name.Local == bodyKind {
				inBody = false
			}
		}
	}

	if len(blocks) == 0 {
		return "*Empty document*", nil
	}
	return strings.Join(blocks, "\n\n"), nil
}

// odfElementText consumes an element and returns its flattened text.
func odfElementText(decoder *xml.Decoder, start *xml.StartElement) string {
	var node struct {
		Content string `xml:",chardata"`
		Inner   []struct {
			Content string `xml:",chardata"`
		} `xml:",any"`
	}
	if err := decoder.DecodeElement(&node, start); err != nil {
		return ""
	}
	text := node.Content
	for _, inner := range node.Inner {
		text += inner.Content
	}
	return strings.TrimSpace(text)
}

type odfTable struct {
	Name string `xml:"name,attr"`
	Rows []struct {
		Cells []struct {
			Paragraphs []struct {
				Text string `xml:",chardata"`
			} `xml:"p"`
		} `xml:"table-cell"`
	} `xml:"table-row"`
}

func (t *odfTable) markdown() string {
	var rows [][]string
	for _, row := range t.Rows {
		var cells []string
		for _, cell := range row.Cells {
			var texts []string
			for _, p := range cell.Paragraphs {
				if text := strings.TrimSpace(p.Text); text != "" {
					texts = append(texts, text)
				}
			}
			cells = append(cells, cellText(strings.Join(texts, " ")))
		}
		if len(cells) > 0 {
			rows = append(rows, cells)
		}
	}
	if len(rows) == 0 {
		return ""
	}

	// Normalize width to the widest row.
	maxCols := 0
	for _, row := range rows {
		if len(row) > maxCols {
			maxCols = len(row)
		}
	}
	for i, row := range rows {
		for len(row) < maxCols {
			row = append(row, "")
		}
		rows[i] = row
	}
	return markdownTable(rows)
}
