package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Headers: []string{"date", "slots", "class"},
		Rows: []map[string]string{
			{"date": "2024-01-01", "slots": "1,2", "class": "English A1"},
			{"date": "2024-01-02", "slots": "3", "class": "French B2"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	exporter := NewCSVExporter()

	out, err := exporter.Render(sampleDataset(), "ignored")
	require.NoError(t, err)
	assert.Equal(t, "date,slots,class\n2024-01-01,\"1,2\",English A1\n2024-01-02,3,French B2\n", string(out))
	assert.Equal(t, "text/csv", exporter.ContentType())
	assert.Equal(t, "csv", exporter.Extension())
}

func TestExportersRequireHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{}, "")
	assert.Error(t, err)
	_, err = NewPDFExporter().Render(Dataset{}, "")
	assert.Error(t, err)
}

func TestPDFExporterPaginates(t *testing.T) {
	data := sampleDataset()
	for i := 0; i < 60; i++ {
		data.Rows = append(data.Rows, map[string]string{"date": "2024-01-03", "slots": "4", "class": "German A2"})
	}

	out, err := NewPDFExporter().Render(data, "Weekly schedule")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
	assert.Equal(t, "application/pdf", NewPDFExporter().ContentType())
}
