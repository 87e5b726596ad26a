package config

import (
	"context"

	"github.com/windnow/dlanalyzer/internal/xevent"
)

// OpenSource builds the event source. The returned close func is never nil.
func (c *Config) OpenSource(ctx context.Context) (xevent.Source, func(), error) {
	if c.Source.Kind == SourceXML {
		return xevent.NewFileSource(xevent.StaticPattern(c.Source.TraceFilePattern)), func() {}, nil
	}

	db, err := xevent.Open(ctx, c.Source.ConnString)
	if err != nil {
		return nil, func() {}, &xevent.SourceReadError{Pattern: c.Source.TraceFilePattern, Err: err}
	}

	var pattern xevent.PatternProvider = xevent.StaticPattern(c.Source.TraceFilePattern)
	if c.Source.TraceFilePattern == "" {
		pattern = &xevent.EngineLogPattern{DB: db}
	}

	return xevent.NewSQLSource(db, pattern), func() { db.Close() }, nil
}
