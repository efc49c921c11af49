// Package sheet converts question catalogues to and from .xlsx workbooks.
package sheet

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ashureev/assessor/internal/domain"
)

// SheetName is the worksheet holding the catalogue.
const SheetName = "Questions"

// ContentType is the MIME type of serialized workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	colID                = "#"
	colCategory          = "Category"
	colQuestion          = "Question"
	colSufficiencyRule   = "Sufficiency Rule"
	colMandatory         = "Mandatory?"
	colMandatoryMisspelt = "Madatory?"
	colAdditionalContext = "Additional Context"
	colAnswer            = "Answer"
	colAnsweredBy        = "Answered By"
	colComments          = "Comments"
)

var exportColumns = []struct {
	header string
	width  float64
}{
	{colID, 5},
	{colCategory, 20},
	{colQuestion, 60},
	{colSufficiencyRule, 40},
	{colMandatory, 12},
	{colAdditionalContext, 30},
	{colAnswer, 50},
	{colAnsweredBy, 20},
	{colComments, 30},
}

// Parse reads the Questions sheet of an .xlsx workbook. Rows missing an id
// or question text are skipped. A missing sheet, missing required headers,
// or a non-numeric id yields domain.ErrMalformedInput.
func Parse(data []byte) ([]domain.Question, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w: %w", domain.ErrMalformedInput, err)
	}
	defer func() { _ = f.Close() }()

	if !hasSheet(f, SheetName) {
		return nil, fmt.Errorf("no %q sheet found in the workbook: %w", SheetName, domain.ErrMalformedInput)
	}

	rows, err := f.GetRows(SheetName)
	if err != nil {
		return nil, fmt.Errorf("read %q sheet: %w: %w", SheetName, domain.ErrMalformedInput, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("workbook must contain headers and at least one question: %w", domain.ErrMalformedInput)
	}

	idx := indexHeaders(rows[0])
	for _, required := range []string{colID, colCategory, colQuestion, colSufficiencyRule} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("missing required columns: #, Category, Question, or Sufficiency Rule: %w", domain.ErrMalformedInput)
		}
	}
	mandatoryCol, ok := idx[colMandatory]
	if !ok {
		mandatoryCol, ok = idx[colMandatoryMisspelt]
		if !ok {
			mandatoryCol = -1
		}
	}

	var questions []domain.Question
	for n, row := range rows[1:] {
		rawID := cell(row, idx[colID])
		text := cell(row, idx[colQuestion])
		if rawID == "" || text == "" {
			continue
		}
		id, err := parseID(rawID)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid id %q: %w", n+2, rawID, domain.ErrMalformedInput)
		}
		questions = append(questions, domain.Question{
			ID:                id,
			Category:          cell(row, idx[colCategory]),
			Text:              text,
			SufficiencyRule:   cell(row, idx[colSufficiencyRule]),
			Mandatory:         strings.EqualFold(cell(row, mandatoryCol), "Y"),
			AdditionalContext: cellOpt(row, idx, colAdditionalContext),
			Answer:            cellOpt(row, idx, colAnswer),
			AnsweredBy:        cellOpt(row, idx, colAnsweredBy),
			Comments:          cellOpt(row, idx, colComments),
		})
	}
	return questions, nil
}

// Serialize writes the catalogue to a new workbook with a Questions sheet.
func Serialize(questions []domain.Question) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(exportColumns))
	for i, c := range exportColumns {
		header[i] = c.header
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, fmt.Errorf("column name: %w", err)
		}
		if err := f.SetColWidth(SheetName, col, col, c.width); err != nil {
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header row: %w", err)
	}

	for i, q := range questions {
		mandatory := "N"
		if q.Mandatory {
			mandatory = "Y"
		}
		row := []any{
			q.ID, q.Category, q.Text, q.SufficiencyRule, mandatory,
			q.AdditionalContext, q.Answer, q.AnsweredBy, q.Comments,
		}
		axis, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetSheetRow(SheetName, axis, &row); err != nil {
			return nil, fmt.Errorf("write question %d: %w", q.ID, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	unsafeChars   = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)
)

// ExportFilename builds "<client>-<project>-assessment-<date>.xlsx" with
// whitespace collapsed to '-' and other unsafe characters removed.
func ExportFilename(sc domain.SessionContext, at time.Time) string {
	name := fmt.Sprintf("%s-%s-assessment-%s.xlsx", sc.ClientName, sc.ProjectName, at.UTC().Format("2006-01-02"))
	name = whitespaceRun.ReplaceAllString(name, "-")
	return unsafeChars.ReplaceAllString(name, "")
}

func hasSheet(f *excelize.File, name string) bool {
	for _, s := range f.GetSheetList() {
		if s == name {
			return true
		}
	}
	return false
}

func indexHeaders(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	return idx
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func cellOpt(row []string, idx map[string]int, header string) string {
	i, ok := idx[header]
	if !ok {
		return ""
	}
	return cell(row, i)
}

// parseID accepts integer cells, including ones Excel rendered as "12.0".
func parseID(raw string) (int, error) {
	if n, err := strconv.Atoi(raw); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != float64(int(f)) {
		return 0, fmt.Errorf("not an integer")
	}
	return int(f), nil
}
