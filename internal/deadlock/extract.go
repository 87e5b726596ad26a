package deadlock

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/windnow/dlanalyzer/internal/xevent"
)

// MalformedEventError drops a single event, never the whole run.
type MalformedEventError struct {
	Timestamp time.Time
	Reason    string
	Err       error
}

func (e *MalformedEventError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("некорректное событие %s: %s: %v", e.Timestamp.Format(time.RFC3339Nano), e.Reason, e.Err)
	}
	return fmt.Sprintf("некорректное событие %s: %s", e.Timestamp.Format(time.RFC3339Nano), e.Reason)
}

func (e *MalformedEventError) Unwrap() error { return e.Err }

func Extract(e xevent.Event, opts Options) (*Extracted, error) {
	if e.Timestamp.IsZero() {
		return nil, &MalformedEventError{Reason: "нет времени события"}
	}

	var ev event
	if err := xml.Unmarshal(e.Payload, &ev); err != nil {
		return nil, &MalformedEventError{Timestamp: e.Timestamp, Reason: "разбор XML", Err: errors.WithStack(err)}
	}

	victims := ev.victimIds(opts.FirstVictimOnly)
	if len(victims) == 0 {
		return nil, &MalformedEventError{Timestamp: e.Timestamp, Reason: "пустой victim-list"}
	}

	resources, membership := ev.resources()

	result := &Extracted{
		Timestamp: e.Timestamp,
		Processes: make([]ProcessRecord, 0, len(ev.Processes)),
		Resources: resources,
	}

	for _, proc := range ev.Processes {
		record := ProcessRecord{
			ProcessID: proc.Id,
			SessionID: proc.SPID,
			Role:      Blocker,
			Query:     coalesce(strings.TrimSpace(proc.Inputbuf.Value), NotAvailable),
		}
		if _, ok := victims[proc.Id]; ok {
			record.Role = Victim
		}

		ids := membership[proc.Id]
		if len(ids) == 0 {
			result.Processes = append(result.Processes, record)
			continue
		}
		for _, id := range ids {
			record.ResourceID = id
			result.Processes = append(result.Processes, record)
		}
	}

	return result, nil
}

func (e *event) victimIds(firstOnly bool) map[string]struct{} {
	result := make(map[string]struct{})
	for _, ref := range e.Victims {
		if ref.Id == "" {
			continue
		}
		result[ref.Id] = struct{}{}
		if firstOnly {
			break
		}
	}
	return result
}

// resources returns resource records by id and, per process id, the ids of
// the resources it owns or waits on in document order.
func (e *event) resources() (map[string]ResourceRecord, map[string][]string) {
	records := make(map[string]ResourceRecord, len(e.Resources.Items))
	membership := make(map[string][]string)

	for i, res := range e.Resources.Items {
		id := res.Id
		if id == "" {
			id = fmt.Sprintf("resource#%d", i)
		}
		// the first node wins when ids repeat, owners and waiters of both are kept
		if _, ok := records[id]; !ok {
			records[id] = ResourceRecord{
				ResourceID: id,
				ObjectName: coalesce(res.Objectname, NotAvailable),
				LockMode:   res.Mode,
				LockType:   coalesce(res.LockType, res.Mode),
			}
		}

		refs := append(append([]processRef{}, res.Owners...), res.Waiters...)
		for _, ref := range refs {
			if !contains(membership[ref.Id], id) {
				membership[ref.Id] = append(membership[ref.Id], id)
			}
		}
	}

	return records, membership
}

func coalesce(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
