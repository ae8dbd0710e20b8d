package convert

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// ConvertXlsx converts an Excel workbook to Markdown tables, one
// section per sheet. Empty sheets are noted rather than dropped so the
// model knows they exist.
func ConvertXlsx(data []byte, filename string) (*Result, error) {
	archive, err := openZip(data)
	if err != nil {
		return nil, fmt.Errorf("parse excel file: %w", err)
	}

	sheets, err := xlsxSheetList(archive)
	if err != nil {
		return nil, fmt.Errorf("parse excel file: %w", err)
	}
	shared, err := xlsxSharedStrings(archive)
	if err != nil {
		return nil, fmt.Errorf("parse excel file: %w", err)
	}

	var sections []string
	for _, sheet := range sheets {
		part, err := readZipPart(archive, sheet.path)
		if err != nil {
			return nil, fmt.Errorf("parse excel file: %w", err)
		}
		rows, err := xlsxSheetRows(part, shared)
		if err != nil {
			return nil, fmt.Errorf("parse excel file: %w", err)
		}
		if md := markdownTable(rows); md != "" {
			sections = append(sections, "## "+sheet.name+"\n\n"+md)
		} else {
			sections = append(sections, "## "+sheet.name+"\n\n*Empty sheet*")
		}
	}

	content := strings.Join(sections, "\n\n")
	if len(sections) == 0 {
		content = "# " + StripExtension(filename) + "\n\n*Empty spreadsheet*"
	}
	return markdownResult(content, filename), nil
}

type xlsxSheet struct {
	name string
	path string
}

// xlsxSheetList resolves sheet names to worksheet part paths via the
// workbook relationships.
func xlsxSheetList(archive *zip.Reader) ([]xlsxSheet, error) {
	workbookXML, err := readZipPart(archive, "xl/workbook.xml")
	if err != nil {
		return nil, err
	}
	var workbook struct {
		Sheets []struct {
			Name string `xml:"name,attr"`
			RID  string `xml:"id,attr"`
		} `xml:"sheets>sheet"`
	}
	if err := xml.Unmarshal(workbookXML, &workbook); err != nil {
		return nil, fmt.Errorf("parse workbook: %w", err)
	}

	relsXML, err := readZipPart(archive, "xl/_rels/workbook.xml.rels")
	if err != nil {
		return nil, err
	}
	var rels struct {
		Relationships []struct {
			ID     string `xml:"Id,attr"`
			Target string `xml:"Target,attr"`
		} `xml:"Relationship"`
	}
	if err := xml.Unmarshal(relsXML, &rels); err != nil {
		return nil, fmt.Errorf("parse workbook rels: %w", err)
	}
	targets := make(map[string]string, len(rels.Relationships))
	for _, rel := range rels.Relationships {
		targets[rel.ID] = rel.Target
	}

	var out []xlsxSheet
	for _, sheet := range workbook.Sheets {
		target, ok := targets[sheet.RID]
		if !ok {
			continue
		}
		target = strings.TrimPrefix(target, "/")
		if !strings.HasPrefix(target, "xl/") {
			target = "xl/" + target
		}
		out = append(out, xlsxSheet{name: sheet.Name, path: target})
	}
	return out, nil
}

// xlsxSharedStrings loads the shared string table. Rich-text strings
// are flattened by concatenating their runs.
func xlsxSharedStrings(archive *zip.Reader) ([]string, error) {
	data, err := readZipPart(archive, "xl/sharedStrings.xml")
	if err != nil {
		// Workbooks without string cells omit the part entirely.
		return nil, nil
	}
	var sst struct {
		Items []struct {
			Text *string `xml:"t"`
			Runs []struct {
				Text string `xml:"t"`
			} `xml:"r"`
		} `xml:"si"`
	}
	if err := xml.Unmarshal(data, &sst); err != nil {
		return nil, fmt.Errorf("parse shared strings: %w", err)
	}

	out := make([]string, len(sst.Items))
	for i, item := range sst.Items {
		if item.Text != nil {
			out[i] = *item.Text
			continue
		}
		var sb strings.Builder
		for _, run := range item.Runs {
			sb.WriteString(run.Text)
		}
		out[i] = sb.String()
	}
	return out, nil
}

// xlsxSheetRows extracts a worksheet into a dense grid, trimming empty
// border rows and trailing empty columns.
func xlsxSheetRows(data []byte, shared []string) ([][]string, error) {
	var sheet struct {
		Rows []struct {
			Cells []struct {
				Ref    string  `xml:"r,attr"`
				Type   string  `xml:"t,attr"`
				Value  *string `xml:"v"`
				Inline *string `xml:"is>t"`
			} `xml:"c"`
		} `xml:"sheetData>row"`
	}
	if err := xml.Unmarshal(data, &sheet); err != nil {
		return nil, fmt.Errorf("parse worksheet: %w", err)
	}

	var grid [][]string
	for _, row := range sheet.Rows {
		var cells []string
		for i, cell := range row.Cells {
			col := i
			if cell.Ref != "" {
				col = columnIndex(cell.Ref)
			}
			for len(cells) <= col {
				cells = append(cells, "")
			}
			cells[col] = cellText(xlsxCellValue(cell.Type, cell.Value, cell.Inline, shared))
		}
		grid = append(grid, cells)
	}

	// Trim empty border rows.
	for len(grid) > 0 && rowEmpty(grid[len(grid)-1]) {
		grid = grid[:len(grid)-1]
	}
	for len(grid) > 0 && rowEmpty(grid[0]) {
		grid = grid[1:]
	}
	if len(grid) == 0 {
		return nil, nil
	}

	// Trim trailing empty columns.
	maxCols := 0
	for _, row := range grid {
		for i := len(row) - 1; i >= 0; i-- {
			if row[i] != "" {
				if i+1 > maxCols {
					maxCols = i + 1
				}
				break
			}
		}
	}
	if maxCols == 0 {
		return nil, nil
	}

	out := make([][]string, len(grid))
	for i, row := range grid {
		if len(row) > maxCols {
			row = row[:maxCols]
		}
		for len(row) < maxCols {
			row = append(row, "")
		}
		out[i] = row
	}
	return out, nil
}

func xlsxCellValue(cellType string, value, inline *string, shared []string) string {
	switch cellType {
	case "s":
		if value == nil {
			return ""
		}
		idx, err := strconv.Atoi(strings.TrimSpace(*value))
		if err != nil || idx < 0 || idx >= len(shared) {
			return ""
		}
		return shared[idx]
	case "inlineStr":
		if inline == nil {
			return ""
		}
		return *inline
	default:
		if value == nil {
			return ""
		}
		return *value
	}
}

// columnIndex converts the letter portion of an A1-style cell
// reference to a zero-based column index.
func columnIndex(ref string) int {
	col := 0
	for _, r := range ref {
		if r < 'A' || r > 'Z' {
			break
		}
		col = col*26 + int(r-'A'+1)
	}
	if col == 0 {
		return 0
	}
	return col - 1
}

func rowEmpty(row []string) bool {
	for _, cell := range row {
		if cell != "" {
			return false
		}
	}
	return true
}
