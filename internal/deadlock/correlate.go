package deadlock

import (
	"sort"
	"time"
)

// Window bounds are inclusive, nil means unbounded.
type Window struct {
	Start *time.Time
	End   *time.Time
}

func (w Window) Contains(t time.Time) bool {
	if w.Start != nil && t.Before(*w.Start) {
		return false
	}
	if w.End != nil && t.After(*w.End) {
		return false
	}
	return true
}

func Correlate(events []*Extracted, w Window) []CorrelatedPair {
	pairs := make([]CorrelatedPair, 0)
	for _, e := range events {
		pairs = append(pairs, e.Pairs()...)
	}

	pairs = Dedup(pairs)

	filtered := pairs[:0]
	for _, p := range pairs {
		if w.Contains(p.EventTime) {
			filtered = append(filtered, p)
		}
	}

	Sort(filtered)
	return filtered
}

// Pairs joins blocker rows to victim rows of the same event on resource id.
func (e *Extracted) Pairs() []CorrelatedPair {
	victims := make(map[string][]ProcessRecord)
	for _, p := range e.Processes {
		if p.Role == Victim && p.ResourceID != "" {
			victims[p.ResourceID] = append(victims[p.ResourceID], p)
		}
	}
	if len(victims) == 0 {
		return nil
	}

	var result []CorrelatedPair
	for _, blocker := range e.Processes {
		if blocker.Role != Blocker || blocker.ResourceID == "" {
			continue
		}
		for _, victim := range victims[blocker.ResourceID] {
			res := e.Resources[victim.ResourceID]
			result = append(result, CorrelatedPair{
				EventTime:      e.Timestamp,
				BlockerSession: blocker.SessionID,
				VictimSession:  victim.SessionID,
				Query:          victim.Query,
				LockedObject:   coalesce(res.ObjectName, NotAvailable),
				LockMode:       res.LockMode,
				LockType:       res.LockType,
			})
		}
	}
	return result
}

type pairKey struct {
	eventTime      int64
	blockerSession int
	victimSession  int
	query          string
	lockedObject   string
	lockMode       string
	lockType       string
}

func (p CorrelatedPair) key() pairKey {
	return pairKey{
		eventTime:      p.EventTime.UnixNano(),
		blockerSession: p.BlockerSession,
		victimSession:  p.VictimSession,
		query:          p.Query,
		lockedObject:   p.LockedObject,
		lockMode:       p.LockMode,
		lockType:       p.LockType,
	}
}

// Dedup keeps the first occurrence of every full tuple.
func Dedup(pairs []CorrelatedPair) []CorrelatedPair {
	seen := make(map[pairKey]struct{}, len(pairs))
	result := make([]CorrelatedPair, 0, len(pairs))
	for _, p := range pairs {
		k := p.key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		result = append(result, p)
	}
	return result
}

func Sort(pairs []CorrelatedPair) {
	sort.SliceStable(pairs, func(i, j int) bool {
		if !pairs[i].EventTime.Equal(pairs[j].EventTime) {
			return pairs[i].EventTime.Before(pairs[j].EventTime)
		}
		return pairs[i].BlockerSession < pairs[j].BlockerSession
	})
}
