package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/windnow/dlanalyzer/internal/deadlock"
	"gopkg.in/yaml.v3"
)

var t0 = time.Date(2023, 5, 1, 10, 15, 30, 250000000, time.UTC)

func sampleReport() *deadlock.Report {
	return &deadlock.Report{
		ID:          uuid.MustParse("6f1c2b9e-3a8d-4d0e-9b7a-1f2e3d4c5b6a"),
		GeneratedAt: t0.Add(time.Hour),
		Events:      3,
		Skipped:     1,
		Pairs: []deadlock.CorrelatedPair{
			{EventTime: t0, BlockerSession: 51, VictimSession: 52, Query: "SELECT *\n\tFROM dbo.Orders", LockedObject: "db.dbo.Orders", LockMode: "X", LockType: "X"},
			{EventTime: t0.Add(time.Minute), BlockerSession: 60, VictimSession: 61, Query: deadlock.NotAvailable, LockedObject: deadlock.NotAvailable, LockMode: "S", LockType: "S"},
		},
	}
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleReport(), FormatTable, nil))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3+1+len(Legend))

	assert.Equal(t, Columns, strings.Fields(lines[0]))
	assert.Contains(t, lines[1], "2023-05-01 10:15:30.250")
	assert.Contains(t, lines[1], "SELECT * FROM dbo.Orders")
	assert.Equal(t, []string{"2023-05-01", "10:16:30.250", "60", "61", "N/A", "N/A", "S", "S"}, strings.Fields(lines[2]))
	assert.Equal(t, "", lines[3])
	assert.Equal(t, Legend, lines[4:])
}

func TestWriteTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, &deadlock.Report{}, "", nil))
	assert.True(t, strings.HasPrefix(buf.String(), "EventTime"))
	assert.True(t, strings.HasSuffix(buf.String(), Legend[len(Legend)-1]+"\n"))
}

func TestWriteTableLocation(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleReport(), FormatTable, time.FixedZone("+06", 6*60*60)))
	assert.Contains(t, buf.String(), "2023-05-01 16:15:30.250")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleReport(), FormatJSON, nil))

	var doc document
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "6f1c2b9e-3a8d-4d0e-9b7a-1f2e3d4c5b6a", doc.ID)
	assert.Equal(t, 3, doc.Events)
	assert.Equal(t, 1, doc.Skipped)
	assert.Equal(t, Legend, doc.Legend)
	require.Len(t, doc.Pairs, 2)
	assert.Equal(t, "SELECT *\n\tFROM dbo.Orders", doc.Pairs[0].Query)
	assert.True(t, doc.Pairs[0].EventTime.Equal(t0))
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleReport(), FormatYAML, nil))

	var doc map[string]interface{}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "6f1c2b9e-3a8d-4d0e-9b7a-1f2e3d4c5b6a", doc["id"])

	pairs, ok := doc["pairs"].([]interface{})
	require.True(t, ok)
	require.Len(t, pairs, 2)
	first := pairs[0].(map[string]interface{})
	assert.Equal(t, 51, first["blockerSession"])
	assert.Equal(t, "db.dbo.Orders", first["lockedObject"])
}

func TestWriteUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Write(&buf, sampleReport(), "csv", nil))
	assert.Empty(t, buf.String())
}

func TestWriteJSONLocation(t *testing.T) {
	r := sampleReport()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, r, FormatJSON, time.FixedZone("+06", 6*60*60)))

	var doc struct {
		Pairs []map[string]interface{} `json:"pairs"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.Len(t, doc.Pairs, 2)
	assert.Equal(t, "2023-05-01T16:15:30.25+06:00", doc.Pairs[0]["eventTime"])
	assert.Equal(t, "X", doc.Pairs[0]["lockType"])

	// the report itself keeps UTC
	assert.Equal(t, time.UTC, r.Pairs[0].EventTime.Location())
}
