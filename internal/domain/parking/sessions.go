package parking

import (
	"sort"

	"gopkg.in/guregu/null.v4"
)

type openSession struct {
	session Session
	seq     int
}

// BuildSessions pairs IN/OUT events into sessions. Events must be ordered by
// created_at ascending. A second IN for a card closes its previous session at
// the new event's time. Sessions still open at the end have a null time_out.
// The result is ordered by time_in descending.
func BuildSessions(events []Event) ([]Session, ReplayStats) {
	var stats ReplayStats
	sessions := make([]Session, 0, len(events))
	open := make(map[string]*openSession)
	seq := 0

	for _, ev := range events {
		switch ev.EventType.Normalize() {
		case EventIn:
			if prev, ok := open[ev.RFIDID]; ok {
				prev.session.TimeOut = null.TimeFrom(ev.CreatedAt)
				sessions = append(sessions, prev.session)
			}
			open[ev.RFIDID] = &openSession{session: sessionFromEvent(ev), seq: seq}
			seq++
		case EventOut:
			prev, ok := open[ev.RFIDID]
			if !ok {
				stats.OrphanOuts++
				continue
			}
			prev.session.TimeOut = null.TimeFrom(ev.CreatedAt)
			sessions = append(sessions, prev.session)
			delete(open, ev.RFIDID)
		default:
			stats.UnknownTypes++
		}
	}

	remaining := make([]*openSession, 0, len(open))
	for _, o := range open {
		remaining = append(remaining, o)
	}
	sort.Slice(remaining, func(i, j int) bool { return remaining[i].seq < remaining[j].seq })
	for _, o := range remaining {
		sessions = append(sessions, o.session)
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].TimeIn.After(sessions[j].TimeIn)
	})
	return sessions, stats
}

func sessionFromEvent(ev Event) Session {
	return Session{
		ID:           ev.ID,
		CardID:       ev.RFIDID,
		LicensePlate: ev.Plate(),
		TimeIn:       ev.CreatedAt,
		ParkingSlot:  ev.Slot(),
		ImagePath:    ev.ImagePath,
	}
}

// PageSessions returns sessions[offset:offset+limit], clamped to the slice bounds.
func PageSessions(sessions []Session, offset, limit int) []Session {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(sessions) || limit <= 0 {
		return []Session{}
	}
	end := offset + limit
	if end > len(sessions) {
		end = len(sessions)
	}
	return sessions[offset:end]
}

// OpenSessionFor returns the open session of cardID, if any.
func OpenSessionFor(sessions []Session, cardID string) (Session, bool) {
	for _, s := range sessions {
		if s.CardID == cardID && s.Open() {
			return s, true
		}
	}
	return Session{}, false
}
