package xevent

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

const DeadlockReport = "xml_deadlock_report"

// Event is one raw extended event record. Payload holds the <event> element.
type Event struct {
	Name      string
	Timestamp time.Time
	Payload   []byte
}

type Source interface {
	Read(ctx context.Context, fn func(Event) error) error
}

// PatternProvider resolves the trace file pattern passed to a Source.
type PatternProvider interface {
	TracePattern(ctx context.Context) (string, error)
}

type StaticPattern string

func (p StaticPattern) TracePattern(_ context.Context) (string, error) {
	if p == "" {
		return "", &SourceReadError{Pattern: "", Err: errors.New("шаблон файлов трассировки не задан")}
	}
	return string(p), nil
}

// SourceReadError is fatal for the whole run.
type SourceReadError struct {
	Pattern string
	File    string
	Err     error
}

func (e *SourceReadError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("ошибка чтения трассировки %s: %v", e.File, e.Err)
	}
	return fmt.Sprintf("ошибка чтения трассировки (%s): %v", e.Pattern, e.Err)
}

func (e *SourceReadError) Unwrap() error { return e.Err }
func (e *SourceReadError) Cause() error  { return e.Err }

func FilterDeadlocks(fn func(Event) error) func(Event) error {
	return func(e Event) error {
		if e.Name != DeadlockReport {
			return nil
		}
		return fn(e)
	}
}

func parseTimestamp(value string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05.999999999"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
