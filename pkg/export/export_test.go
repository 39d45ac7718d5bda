package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registerTable() Table {
	return Table{
		Columns: []string{"Queue Number", "Student", "Status"},
		Rows: [][]string{
			{"CDM-20250603-1234", "Juan Dela Cruz", "Active"},
			{"CDM-20250603-5678", "Maria Santos", "Ready"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	payload, err := NewCSVExporter().Render(registerTable())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(payload)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Queue Number,Student,Status", lines[0])
	assert.Equal(t, "CDM-20250603-1234,Juan Dela Cruz,Active", lines[1])
}

func TestCSVExporterRejectsRaggedRows(t *testing.T) {
	table := registerTable()
	table.Rows = append(table.Rows, []string{"orphan"})

	_, err := NewCSVExporter().Render(table)
	require.Error(t, err)
}

func TestPDFExporterRenderTable(t *testing.T) {
	payload, err := NewPDFExporter().RenderTable(registerTable(), "Document Request Register")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(payload, []byte("%PDF")))
}

func TestPDFExporterRenderTableRequiresColumns(t *testing.T) {
	_, err := NewPDFExporter().RenderTable(Table{}, "")
	require.Error(t, err)
}

func TestPDFExporterRenderTableRejectsRaggedRows(t *testing.T) {
	table := registerTable()
	table.Rows = append(table.Rows, []string{"orphan"})

	_, err := NewPDFExporter().RenderTable(table, "")
	require.Error(t, err)
}

func TestPDFExporterRenderClaimStub(t *testing.T) {
	payload, err := NewPDFExporter().RenderClaimStub(ClaimStub{
		QueueNumber:  "CDM-20250603-1234",
		StudentName:  "Juan Dela Cruz",
		DocumentType: "Transcript of Records",
		Quantity:     1,
		TotalAmount:  150,
		ReleaseDate:  "June 10, 2025",
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(payload, []byte("%PDF")))
}

func TestPDFExporterClaimStubRequiresQueueNumber(t *testing.T) {
	_, err := NewPDFExporter().RenderClaimStub(ClaimStub{})
	require.Error(t, err)
}
