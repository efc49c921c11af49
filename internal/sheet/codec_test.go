package sheet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ashureev/assessor/internal/domain"
)

func buildWorkbook(t *testing.T, sheet string, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	require.NoError(t, f.SetSheetName(f.GetSheetName(0), sheet))
	for i, row := range rows {
		axis, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow(sheet, axis, &r))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestRoundTripPreservesCatalogue(t *testing.T) {
	questions := []domain.Question{
		{ID: 1, Category: "Network", Text: "How many VPCs?", SufficiencyRule: "A number", Mandatory: true, AdditionalContext: "Include shared", Answer: "three", AnsweredBy: "Client SME", Comments: "confirmed"},
		{ID: 2, Category: "Data", Text: "Which databases?", SufficiencyRule: "Engines and versions"},
	}

	data, err := Serialize(questions)
	require.NoError(t, err)

	got, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, questions, got)
}

func TestParseAcceptsMisspeltMandatoryHeader(t *testing.T) {
	data := buildWorkbook(t, SheetName, [][]any{
		{"#", "Category", "Question", "Sufficiency Rule", "Madatory?"},
		{1, "Infra", "How many AZs?", "Count", "y"},
		{2, "Infra", "CDN?", "Yes/No", "N"},
		{"", "Infra", "orphan row without id", "", "Y"},
		{3, "Infra", "", "", "Y"},
	})

	got, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].Mandatory)
	assert.False(t, got[1].Mandatory)
	assert.Empty(t, got[0].Answer)
}

func TestParseMissingSheet(t *testing.T) {
	data := buildWorkbook(t, "Sheet1", [][]any{{"#", "Category", "Question", "Sufficiency Rule"}, {1, "a", "b", "c"}})

	_, err := Parse(data)
	assert.ErrorIs(t, err, domain.ErrMalformedInput)
}

func TestParseMissingRequiredColumn(t *testing.T) {
	data := buildWorkbook(t, SheetName, [][]any{{"#", "Category", "Question"}, {1, "a", "b"}})

	_, err := Parse(data)
	assert.ErrorIs(t, err, domain.ErrMalformedInput)
}

func TestParseHeaderOnly(t *testing.T) {
	data := buildWorkbook(t, SheetName, [][]any{{"#", "Category", "Question", "Sufficiency Rule"}})

	_, err := Parse(data)
	assert.ErrorIs(t, err, domain.ErrMalformedInput)
}

func TestParseNotAWorkbook(t *testing.T) {
	_, err := Parse([]byte("plainly not a zip"))
	assert.ErrorIs(t, err, domain.ErrMalformedInput)
}

func TestExportFilename(t *testing.T) {
	name := ExportFilename(domain.SessionContext{ClientName: "Acme Corp", ProjectName: "Cloud/Move #1"}, time.Date(2026, 3, 9, 15, 0, 0, 0, time.UTC))
	assert.Equal(t, "Acme-Corp-CloudMove-1-assessment-2026-03-09.xlsx", name)
}
