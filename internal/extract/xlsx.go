package extract

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"redact-backend/internal/classify"
)

const (
	// maxColumns is the worksheet width limit (column XFD).
	maxColumns = 16384
	// maxCells bounds the padded cells emitted for one worksheet.
	maxCells = 1 << 22
)

// xlsxExtractor converts the first worksheet to comma-separated rows joined by
// newlines. Other sheets are ignored.
type xlsxExtractor struct{}

type xlsxWorkbook struct {
	Sheets []struct {
		Name string `xml:"name,attr"`
		RID  string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
	} `xml:"sheets>sheet"`
}

type xlsxRichText struct {
	T    string `xml:"t"`
	Runs []struct {
		T string `xml:"t"`
	} `xml:"r"`
}

func (r xlsxRichText) text() string {
	if len(r.Runs) == 0 {
		return r.T
	}
	var b strings.Builder
	b.WriteString(r.T)
	for _, run := range r.Runs {
		b.WriteString(run.T)
	}
	return b.String()
}

type xlsxSharedStrings struct {
	Items []xlsxRichText `xml:"si"`
}

type xlsxCell struct {
	Ref    string        `xml:"r,attr"`
	Type   string        `xml:"t,attr"`
	Value  string        `xml:"v"`
	Inline *xlsxRichText `xml:"is"`
}

type xlsxSheet struct {
	Rows []struct {
		Cells []xlsxCell `xml:"c"`
	} `xml:"sheetData>row"`
}

func (xlsxExtractor) Extract(_ context.Context, data []byte) (Result, error) {
	c, err := openContainer(data)
	if err != nil {
		return Result{}, failure(classify.StrategyXLSX, ReasonCorrupt, err)
	}

	sheetPart, sheetCount, err := firstWorksheet(c)
	if err != nil {
		reason := ReasonCorrupt
		if errors.Is(err, errPartMissing) {
			reason = ReasonMissingPart
		}
		return Result{}, failure(classify.StrategyXLSX, reason, err)
	}

	var shared []string
	if raw, err := c.read("xl/sharedStrings.xml"); err == nil {
		var sst xlsxSharedStrings
		if err := xml.Unmarshal(raw, &sst); err != nil {
			return Result{}, failure(classify.StrategyXLSX, ReasonCorrupt, fmt.Errorf("shared strings: %w", err))
		}
		shared = make([]string, len(sst.Items))
		for i, si := range sst.Items {
			shared[i] = si.text()
		}
	} else if !errors.Is(err, errPartMissing) {
		return Result{}, failure(classify.StrategyXLSX, ReasonCorrupt, err)
	}

	raw, err := c.read(sheetPart)
	if err != nil {
		return Result{}, failure(classify.StrategyXLSX, ReasonMissingPart, err)
	}
	var sheet xlsxSheet
	if err := xml.Unmarshal(raw, &sheet); err != nil {
		return Result{}, failure(classify.StrategyXLSX, ReasonCorrupt, fmt.Errorf("%s: %w", sheetPart, err))
	}

	lines := make([]string, 0, len(sheet.Rows))
	cells := 0
	for _, row := range sheet.Rows {
		var record []string
		for _, cell := range row.Cells {
			if col, ok := columnIndex(cell.Ref); ok {
				if col >= maxColumns {
					return Result{}, failure(classify.StrategyXLSX, ReasonCorrupt, fmt.Errorf("cell %q beyond column XFD", cell.Ref))
				}
				if pad := col - len(record); pad > 0 {
					if cells += pad; cells > maxCells {
						return Result{}, failure(classify.StrategyXLSX, ReasonCorrupt, fmt.Errorf("worksheet exceeds %d cells", maxCells))
					}
					for len(record) < col {
						record = append(record, "")
					}
				}
			}
			cells++
			record = append(record, cellText(cell, shared))
		}
		for len(record) > 0 && record[len(record)-1] == "" {
			record = record[:len(record)-1]
		}
		if len(record) == 0 {
			continue
		}
		lines = append(lines, csvLine(record))
	}

	return Result{
		Text:     strings.Join(lines, "\n"),
		Strategy: classify.StrategyXLSX,
		Sheets:   sheetCount,
	}, nil
}

// firstWorksheet resolves the first <sheet> of the workbook through its
// relationship ID.
func firstWorksheet(c *container) (string, int, error) {
	raw, err := c.read("xl/workbook.xml")
	if err != nil {
		return "", 0, err
	}
	var wb xlsxWorkbook
	if err := xml.Unmarshal(raw, &wb); err != nil {
		return "", 0, fmt.Errorf("workbook: %w", err)
	}
	if len(wb.Sheets) == 0 {
		return "", 0, fmt.Errorf("workbook has no sheets: %w", errPartMissing)
	}

	rels, err := c.relationships("xl/_rels/workbook.xml.rels", "xl")
	if err == nil {
		if target, ok := rels[wb.Sheets[0].RID]; ok && c.has(target) {
			return target, len(wb.Sheets), nil
		}
	}
	if c.has("xl/worksheets/sheet1.xml") {
		return "xl/worksheets/sheet1.xml", len(wb.Sheets), nil
	}
	return "", 0, fmt.Errorf("first worksheet %q: %w", wb.Sheets[0].Name, errPartMissing)
}

func cellText(cell xlsxCell, shared []string) string {
	switch cell.Type {
	case "s":
		idx, err := strconv.Atoi(strings.TrimSpace(cell.Value))
		if err != nil || idx < 0 || idx >= len(shared) {
			return ""
		}
		return shared[idx]
	case "inlineStr":
		if cell.Inline != nil {
			return cell.Inline.text()
		}
		return ""
	case "b":
		if strings.TrimSpace(cell.Value) == "1" {
			return "TRUE"
		}
		return "FALSE"
	default:
		return cell.Value
	}
}

// columnIndex converts the letters of a cell reference like "AB12" to a
// zero-based column. Values past maxColumns saturate.
func columnIndex(ref string) (int, bool) {
	col := 0
	n := 0
	for _, r := range ref {
		if r >= 'a' && r <= 'z' {
			r -= 'a' - 'A'
		}
		if r < 'A' || r > 'Z' {
			break
		}
		if col <= maxColumns {
			col = col*26 + int(r-'A'+1)
		}
		n++
	}
	if n == 0 {
		return 0, false
	}
	return col - 1, true
}

func csvLine(record []string) string {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(record)
	w.Flush()
	return strings.TrimRight(buf.String(), "\n")
}
