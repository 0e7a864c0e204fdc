package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterRender(t *testing.T) {
	exporter := NewCSVExporter()
	payload, err := exporter.Render(Dataset{
		Headers: []string{"NIS", "Name"},
		Rows: []map[string]string{
			{"NIS": "2025001", "Name": "Wulandari, Rina"},
		},
	})
	require.NoError(t, err)

	content := string(payload)
	assert.True(t, strings.HasPrefix(content, "NIS,Name\n"))
	assert.Contains(t, content, `2025001,"Wulandari, Rina"`)
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	exporter := NewCSVExporter()
	_, err := exporter.Render(Dataset{})
	require.Error(t, err)
}

func TestCSVExporterMissingCellsStayEmpty(t *testing.T) {
	exporter := NewCSVExporter()
	payload, err := exporter.Render(Dataset{
		Headers: []string{"NIS", "Name", "Status"},
		Rows: []map[string]string{
			{"NIS": "2025001"},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, string(payload), "2025001,,\n")
}

func TestPDFExporterRender(t *testing.T) {
	exporter := NewPDFExporter()
	payload, err := exporter.Render(Dataset{
		Headers: []string{"Code", "Course"},
		Rows: []map[string]string{
			{"Code": "MATH101", "Course": "Algebra I"},
		},
		Footer: "Generated for testing",
	}, "Academic Transcript - Test", "Student Number 2025001")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(payload), "%PDF"))
}

func TestPDFExporterRequiresHeaders(t *testing.T) {
	exporter := NewPDFExporter()
	_, err := exporter.Render(Dataset{}, "Title", "")
	require.Error(t, err)
}
