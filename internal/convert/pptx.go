package convert

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ConvertPptx converts a PowerPoint deck to Markdown: one section per
// slide with the title as heading, body text, tables, and speaker
// notes as a quoted block.
func ConvertPptx(data []byte, filename string) (*Result, error) {
	archive, err := openZip(data)
	if err != nil {
		return nil, fmt.Errorf("parse powerpoint file: %w", err)
	}

	var sections []string
	for _, num := range pptxSlideNumbers(archive) {
		slideXML, err := readZipPart(archive, fmt.Sprintf("ppt/slides/slide%d.xml", num))
		if err != nil {
			return nil, fmt.Errorf("parse powerpoint file: %w", err)
		}
		slide, err := pptxParseSlide(slideXML)
		if err != nil {
			return nil, fmt.Errorf("parse powerpoint file: %w", err)
		}

		notes := ""
		if notesXML, err := readZipPart(archive, fmt.Sprintf("ppt/notesSlides/notesSlide%d.xml", num)); err == nil {
			if parsed, err := pptxParseSlide(notesXML); err == nil {
				notes = strings.TrimSpace(strings.Join(parsed.paragraphs, "\n"))
			}
		}

		if md := slide.markdown(num, notes); md != "" {
			sections = append(sections, md)
		}
	}

	content := strings.Join(sections, "\n\n---\n\n")
	if len(sections) == 0 {
		content = "# " + StripExtension(filename) + "\n\n*Empty presentation*"
	}
	return markdownResult(content, filename), nil
}

// pptxSlideNumbers lists the slide part numbers present in the
// archive, in deck order.
func pptxSlideNumbers(archive *zip.Reader) []int {
	var nums []int
	for _, f := range archive.File {
		var n int
		if _, err := fmt.Sscanf(f.Name, "ppt/slides/slide%d.xml", &n); err == nil {
			if f.Name == "ppt/slides/slide"+strconv.Itoa(n)+".xml" {
				nums = append(nums, n)
			}
		}
	}
	sort.Ints(nums)
	return nums
}

type pptxSlide struct {
	title      string
	paragraphs []string
	tables     []string
}

// pptxParseSlide walks a slide part, collecting shape paragraphs and
// tables. The title placeholder is recognized by its ph type.
func pptxParseSlide(data []byte) (*pptxSlide, error) {
	slide := &pptxSlide{}
	decoder := xml.NewDecoder(bytes.NewReader(data))
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
		case "sp":
			var shape pptxShape
			if err := decoder.DecodeElement(&shape, &start); err != nil {
				return nil, fmt.Errorf("parse shape: %w", err)
			}
			shape.collect(slide)
		case "tbl":
			var table pptxTable
			if err := decoder.DecodeElement(&table, &start); err != nil {
				return nil, fmt.Errorf("parse table: %w", err)
			}
			if md := table.markdown(); md != "" {
				slide.tables = append(slide.tables, md)
			}
		}
	}
	return slide, nil
}

type pptxShape struct {
	Placeholder struct {
		Type string `xml:"type,attr"`
	} `xml:"nvSpPr>nvPr>ph"`
	Paragraphs []pptxParagraph `xml:"txBody>p"`
}

type pptxParagraph struct {
	Props struct {
		Level string `xml:"lvl,attr"`
	} `xml:"pPr"`
	Runs []struct {
		Text string `xml:"t"`
	} `xml:"r"`
}

func (p *pptxParagraph) text() string {
	var sb strings.Builder
	for _, run := range p.Runs {
		sb.WriteString(run.Text)
	}
	return strings.TrimSpace(sb.String())
}

func (s *pptxShape) collect(slide *pptxSlide) {
	isTitle := s.Placeholder.Type == "title" || s.Placeholder.Type == "ctrTitle"

	for i := range s.Paragraphs {
		para := &s.Paragraphs[i]
		text := para.text()
		if text == "" {
			continue
		}
		if isTitle && slide.title == "" {
			slide.title = text
			continue
		}
		if level, err := strconv.Atoi(para.Props.Level); err == nil && level > 0 {
			text = strings.Repeat("  ", level) + "- " + text
		}
		slide.paragraphs = append(slide.paragraphs, text)
	}
}

func (s *pptxSlide) markdown(num int, notes string) string {
	var lines []string
	if s.title != "" {
		lines = append(lines, fmt.Sprintf("## Slide %d: %s", num, s.title))
	} else {
		lines = append(lines, fmt.Sprintf("## Slide %d", num))
	}
	lines = append(lines, "")
	lines = append(lines, s.paragraphs...)
	lines = append(lines, s.tables...)

	if notes != "" {
		lines = append(lines, "", "**Speaker Notes:**", "> "+notes)
	}

	// Skip slides with nothing beyond the heading.
	hasContent := false
	for _, line := range lines[2:] {
		if strings.TrimSpace(line) != "" {
			hasContent = true
			break
		}
	}
	if !hasContent {
		return ""
	}
	return strings.Join(lines, "\n")
}

type pptxTable struct {
	Rows []struct {
		Cells []struct {
			Paragraphs []pptxParagraph `xml:"txBody>p"`
		} `xml:"tc"`
	} `xml:"tr"`
}

func (t *pptxTable) markdown() string {
	var rows [][]string
	for _, row := range t.Rows {
		var cells []string
		for _, cell := range row.Cells {
			var texts []string
			for i := range cell.Paragraphs {
				if text := cell.Paragraphs[i].text(); text != "" {
					texts = append(texts, text)
				}
			}
			cells = append(cells, cellText(strings.Join(texts, " ")))
		}
		rows = append(rows, cells)
	}
	return markdownTable(rows)
}
