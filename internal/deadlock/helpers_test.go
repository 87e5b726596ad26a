package deadlock

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"time"

	"github.com/windnow/dlanalyzer/internal/xevent"
)

type testProcess struct {
	id    string
	spid  int
	query string
}

type testResource struct {
	kind     string
	id       string
	object   string
	mode     string
	lockType string
	owners   []string
	waiters  []string
}

func attr(buf *bytes.Buffer, name, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(buf, ` %s="`, name)
	xml.EscapeText(buf, []byte(value))
	buf.WriteString(`"`)
}

// deadlockEvent renders an xml_deadlock_report event. A nil victims slice
// leaves out the victim-list element.
func deadlockEvent(ts time.Time, victims []string, procs []testProcess, resources []testResource) xevent.Event {
	var buf bytes.Buffer
	buf.WriteString(`<event name="xml_deadlock_report" package="sqlserver"><data name="xml_report"><value><deadlock>`)

	if victims != nil {
		buf.WriteString(`<victim-list>`)
		for _, v := range victims {
			fmt.Fprintf(&buf, `<victimProcess id="%s"/>`, v)
		}
		buf.WriteString(`</victim-list>`)
	}

	buf.WriteString(`<process-list>`)
	for _, p := range procs {
		buf.WriteString(`<process`)
		attr(&buf, "id", p.id)
		attr(&buf, "spid", fmt.Sprint(p.spid))
		buf.WriteString(`>`)
		if p.query != "" {
			buf.WriteString(`<executionStack><frame procname="adhoc" line="1"/></executionStack><inputbuf>`)
			xml.EscapeText(&buf, []byte(p.query))
			buf.WriteString(`</inputbuf>`)
		}
		buf.WriteString(`</process>`)
	}
	buf.WriteString(`</process-list>`)

	buf.WriteString(`<resource-list>`)
	for _, r := range resources {
		kind := r.kind
		if kind == "" {
			kind = "keylock"
		}
		buf.WriteString(`<` + kind)
		attr(&buf, "id", r.id)
		attr(&buf, "objectname", r.object)
		attr(&buf, "mode", r.mode)
		attr(&buf, "lockType", r.lockType)
		buf.WriteString(`><owner-list>`)
		for _, o := range r.owners {
			fmt.Fprintf(&buf, `<owner id="%s" mode="%s"/>`, o, r.mode)
		}
		buf.WriteString(`</owner-list><waiter-list>`)
		for _, w := range r.waiters {
			fmt.Fprintf(&buf, `<waiter id="%s" mode="%s" requestType="wait"/>`, w, r.mode)
		}
		buf.WriteString(`</waiter-list></` + kind + `>`)
	}
	buf.WriteString(`</resource-list></deadlock></value></data></event>`)

	return xevent.Event{Name: xevent.DeadlockReport, Timestamp: ts, Payload: buf.Bytes()}
}

// classicEvent is a two-session cycle: process1 holds lock1 wanted by the
// victim process2, process2 holds lock2 wanted by process1.
func classicEvent(ts time.Time, blockerSpid, victimSpid int) xevent.Event {
	return deadlockEvent(ts,
		[]string{"process2"},
		[]testProcess{
			{id: "process1", spid: blockerSpid, query: "UPDATE dbo.T SET a = 1"},
			{id: "process2", spid: victimSpid, query: "SELECT 1"},
		},
		[]testResource{
			{id: "lock1", object: "dbo.T", mode: "X", owners: []string{"process1"}, waiters: []string{"process2"}},
			{id: "lock2", object: "dbo.T", mode: "X", owners: []string{"process2"}, waiters: []string{"process1"}},
		},
	)
}

type sliceSource struct {
	events []xevent.Event
	err    error
}

func (s *sliceSource) Read(ctx context.Context, fn func(xevent.Event) error) error {
	for _, e := range s.events {
		if err := fn(e); err != nil {
			return err
		}
	}
	return s.err
}

var t0 = time.Date(2023, 5, 1, 10, 0, 0, 0, time.UTC)
