package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/windnow/dlanalyzer/internal/deadlock"
	"gopkg.in/yaml.v3"
)

const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

var Columns = []string{"EventTime", "BlockerSession", "VictimSession", "Query", "LockedObject", "LockMode", "LockType"}

var Legend = []string{
	"EventTime - время взаимоблокировки (событие xml_deadlock_report).",
	"BlockerSession - SPID сеанса, транзакция которого продолжила работу.",
	"VictimSession - SPID сеанса, выбранного жертвой и завершенного сервером.",
	"Query - текст запроса жертвы (inputbuf), N/A если сервер его не записал.",
	"LockedObject - объект, блокировку которого не смогла получить жертва, N/A если неизвестен.",
	"LockMode - режим блокировки ресурса (S, U, X, IX, ...).",
	"LockType - уточненный тип блокировки, при отсутствии совпадает с LockMode.",
	"Одна строка на каждый общий ресурс пары блокирующий/жертва, одинаковые строки объединены.",
}

type document struct {
	ID          string                    `json:"id" yaml:"id"`
	GeneratedAt time.Time                 `json:"generatedAt" yaml:"generatedAt"`
	Events      int                       `json:"events" yaml:"events"`
	Skipped     int                       `json:"skipped" yaml:"skipped"`
	Pairs       []deadlock.CorrelatedPair `json:"pairs" yaml:"pairs"`
	Legend      []string                  `json:"legend" yaml:"legend"`
}

func Write(w io.Writer, r *deadlock.Report, format string, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	switch format {
	case FormatTable, "":
		return writeTable(w, r, loc)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(newDocument(r, loc)), "вывод json")
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(newDocument(r, loc)); err != nil {
			return errors.Wrap(err, "вывод yaml")
		}
		return enc.Close()
	default:
		return errors.Errorf("неизвестный формат вывода: %q", format)
	}
}

func newDocument(r *deadlock.Report, loc *time.Location) document {
	doc := document{
		ID:          r.ID.String(),
		GeneratedAt: r.GeneratedAt.In(loc),
		Events:      r.Events,
		Skipped:     r.Skipped,
		Pairs:       make([]deadlock.CorrelatedPair, 0, len(r.Pairs)),
		Legend:      Legend,
	}
	for _, p := range r.Pairs {
		p.EventTime = p.EventTime.In(loc)
		doc.Pairs = append(doc.Pairs, p)
	}
	return doc
}

func writeTable(w io.Writer, r *deadlock.Report, loc *time.Location) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(Columns, "\t"))
	for _, p := range r.Pairs {
		fmt.Fprintln(tw, strings.Join([]string{
			p.EventTime.In(loc).Format("2006-01-02 15:04:05.000"),
			strconv.Itoa(p.BlockerSession),
			strconv.Itoa(p.VictimSession),
			oneLine(p.Query),
			p.LockedObject,
			p.LockMode,
			p.LockType,
		}, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	for _, line := range Legend {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// oneLine collapses all whitespace, tabs included.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
