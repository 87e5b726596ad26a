package deadlock

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/windnow/dlanalyzer/internal/xevent"
)

func testLogger() (*logrus.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	log := logrus.New()
	log.Out = &buf
	return log, &buf
}

func TestAnalyzeSkipsMalformedEvents(t *testing.T) {
	log, out := testLogger()
	src := &sliceSource{events: []xevent.Event{
		{Name: "sp_server_diagnostics_component_result", Timestamp: t0},
		deadlockEvent(t0, nil, []testProcess{{id: "p1", spid: 1}}, nil),
		classicEvent(t0.Add(time.Second), 51, 52),
	}}

	report, err := NewAnalyzer(src, Options{}, log).Analyze(context.Background(), Window{})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, report.ID)
	assert.Equal(t, 2, report.Events)
	assert.Equal(t, 1, report.Skipped)
	require.Len(t, report.Pairs, 1)
	assert.Equal(t, 51, report.Pairs[0].BlockerSession)
	assert.Contains(t, out.String(), "victim-list")
}

func TestAnalyzeSourceFailure(t *testing.T) {
	log, _ := testLogger()
	readErr := &xevent.SourceReadError{Pattern: "x", Err: errors.New("locked")}
	src := &sliceSource{events: []xevent.Event{classicEvent(t0, 1, 2)}, err: readErr}

	report, err := NewAnalyzer(src, Options{}, log).Analyze(context.Background(), Window{})
	assert.Nil(t, report)

	var target *xevent.SourceReadError
	require.True(t, errors.As(err, &target))
	assert.Same(t, readErr, target)
}

func TestAnalyzeAppliesWindowAndOptions(t *testing.T) {
	three := deadlockEvent(t0, []string{"p2", "p3"},
		[]testProcess{{id: "p1", spid: 1}, {id: "p2", spid: 2}, {id: "p3", spid: 3}},
		[]testResource{{id: "r1", mode: "X", owners: []string{"p1"}, waiters: []string{"p2", "p3"}}},
	)
	src := &sliceSource{events: []xevent.Event{three, classicEvent(t0.Add(time.Hour), 5, 6)}}
	end := t0.Add(time.Minute)

	report, err := NewAnalyzer(src, Options{FirstVictimOnly: true}, nil).Analyze(context.Background(), Window{End: &end})
	require.NoError(t, err)
	require.Len(t, report.Pairs, 2)

	// p3 is treated as a blocker of p2 when only the first victim counts
	assert.Equal(t, 1, report.Pairs[0].BlockerSession)
	assert.Equal(t, 3, report.Pairs[1].BlockerSession)
	assert.Equal(t, 2, report.Pairs[1].VictimSession)
}

func TestAnalyzeFileSource(t *testing.T) {
	log, _ := testLogger()
	src := xevent.NewFileSource(xevent.StaticPattern(filepath.Join("..", "xevent", "testdata", "system_health_*.xml")))

	report, err := NewAnalyzer(src, Options{}, log).Analyze(context.Background(), Window{})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Events)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, []CorrelatedPair{{
		EventTime:      time.Date(2023, 5, 1, 10, 15, 30, 250000000, time.UTC),
		BlockerSession: 51,
		VictimSession:  52,
		Query:          "SELECT * FROM dbo.Orders",
		LockedObject:   "db.dbo.Orders",
		LockMode:       "X",
		LockType:       "X",
	}}, report.Pairs)
}
