package deadlock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/windnow/dlanalyzer/internal/xevent"
)

type Report struct {
	ID          uuid.UUID        `json:"id" yaml:"id"`
	GeneratedAt time.Time        `json:"generatedAt" yaml:"generatedAt"`
	Events      int              `json:"events" yaml:"events"`
	Skipped     int              `json:"skipped" yaml:"skipped"`
	Pairs       []CorrelatedPair `json:"pairs" yaml:"pairs"`
}

type Analyzer struct {
	source  xevent.Source
	options Options
	log     *logrus.Logger
}

func NewAnalyzer(source xevent.Source, options Options, log *logrus.Logger) *Analyzer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Analyzer{
		source:  source,
		options: options,
		log:     log,
	}
}

// Analyze reads the whole source before correlating. A source error aborts
// the run with no partial report.
func (a *Analyzer) Analyze(ctx context.Context, w Window) (*Report, error) {
	report := &Report{
		ID:          uuid.New(),
		GeneratedAt: time.Now().UTC(),
	}
	extracted := make([]*Extracted, 0)
	err := a.source.Read(ctx, xevent.FilterDeadlocks(func(e xevent.Event) error {
		report.Events++
		x, err := Extract(e, a.options)
		if err != nil {
			report.Skipped++
			a.log.Warnf("Событие пропущено: %s", err.Error())
			return nil
		}
		extracted = append(extracted, x)
		return nil
	}))
	if err != nil {
		return nil, err
	}

	report.Pairs = Correlate(extracted, w)
	a.log.Infof("Отчет %s. Прочитано взаимоблокировок: %d, пропущено: %d, пар: %d", report.ID, report.Events, report.Skipped, len(report.Pairs))

	return report, nil
}
