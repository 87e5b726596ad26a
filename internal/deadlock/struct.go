package deadlock

import (
	"encoding/xml"
	"time"
)

type event struct {
	XMLName xml.Name `xml:"event"`
	Name    string   `xml:"name,attr"`

	Victims   []processRef `xml:"data>value>deadlock>victim-list>victimProcess"`
	Processes []process    `xml:"data>value>deadlock>process-list>process"`
	Resources resourceList `xml:"data>value>deadlock>resource-list"`
}

type process struct {
	Id       string   `xml:"id,attr"`
	SPID     int      `xml:"spid,attr"`
	LockMode string   `xml:"lockMode,attr"`
	Inputbuf inputbuf `xml:"inputbuf"`
}

// resourceList takes keylock, pagelock, objectlock, ridlock and friends alike.
type resourceList struct {
	Items []resource `xml:",any"`
}

type resource struct {
	Id         string       `xml:"id,attr"`
	Objectname string       `xml:"objectname,attr"`
	Mode       string       `xml:"mode,attr"`
	LockType   string       `xml:"lockType,attr"`
	Owners     []processRef `xml:"owner-list>owner"`
	Waiters    []processRef `xml:"waiter-list>waiter"`
}

type processRef struct {
	Id          string `xml:"id,attr"`
	Mode        string `xml:"mode,attr,omitempty"`
	RequestType string `xml:"requestType,attr,omitempty"`
}

type inputbuf struct {
	Value string `xml:",chardata"`
}

type Role string

const (
	Victim  Role = "Victim"
	Blocker Role = "Blocker"
)

const NotAvailable = "N/A"

// ProcessRecord is one process of one event together with one resource it
// owns or waits on.
type ProcessRecord struct {
	ProcessID  string
	SessionID  int
	Role       Role
	Query      string
	ResourceID string
}

type ResourceRecord struct {
	ResourceID string
	ObjectName string
	LockMode   string
	LockType   string
}

// Extracted is the flattened form of a single deadlock report.
type Extracted struct {
	Timestamp time.Time
	Processes []ProcessRecord
	Resources map[string]ResourceRecord
}

type CorrelatedPair struct {
	EventTime      time.Time `json:"eventTime" yaml:"eventTime"`
	BlockerSession int       `json:"blockerSession" yaml:"blockerSession"`
	VictimSession  int       `json:"victimSession" yaml:"victimSession"`
	Query          string    `json:"query" yaml:"query"`
	LockedObject   string    `json:"lockedObject" yaml:"lockedObject"`
	LockMode       string    `json:"lockMode" yaml:"lockMode"`
	LockType       string    `json:"lockType" yaml:"lockType"`
}

type Options struct {
	// FirstVictimOnly treats only the first victim-list entry as the victim.
	FirstVictimOnly bool
}
