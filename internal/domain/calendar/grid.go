// Package calendar is the server-side model of the clinic's scheduling view:
// the visible week or day grid, the time math behind drag and resize
// gestures, and the state machine that turns a gesture into a session
// mutation.
package calendar

import (
	"fmt"
	"sort"
	"time"

	"github.com/soulsalutte/clinic/internal/domain/scheduling"
	"github.com/soulsalutte/clinic/internal/platform/apperr"
	"github.com/soulsalutte/clinic/pkg/localtime"
)

const (
	DayStartHour = 7
	DayEndHour   = 20
	SlotMinutes  = 15
	SlotsPerDay  = (DayEndHour - DayStartHour) * 60 / SlotMinutes

	// DefaultNewSessionLength is the length suggested for a session booked
	// from an empty slot.
	DefaultNewSessionLength = 60 * time.Minute
)

const slotLength = SlotMinutes * time.Minute

type View string

const (
	ViewWeek View = "semana"
	ViewDay  View = "dia"
)

// ParseView accepts the wire names and their English equivalents. Empty
// means the week view.
func ParseView(s string) (View, error) {
	switch s {
	case "", "semana", "week":
		return ViewWeek, nil
	case "dia", "day":
		return ViewDay, nil
	}
	return "", apperr.Validation("visao must be semana or dia")
}

// Color tokens of the status contract.
const (
	ColorPrimary     = "primary"
	ColorSecondary   = "secondary"
	ColorDestructive = "destructive"
	ColorMuted       = "muted"
)

// Color returns the accent token for a session status.
func Color(s scheduling.Status) string {
	switch s {
	case scheduling.StatusCompleted:
		return ColorSecondary
	case scheduling.StatusCanceled:
		return ColorDestructive
	case scheduling.StatusNoShow:
		return ColorMuted
	default:
		return ColorPrimary
	}
}

// Window is the visible span of the calendar. End is the last instant shown.
type Window struct {
	View  View
	Start time.Time
	End   time.Time
	Days  []time.Time
}

// NewWindow returns the week (Monday to Sunday) or the single day that
// contains anchor.
func NewWindow(anchor time.Time, view View, loc *time.Location) Window {
	var first time.Time
	n := 1
	if view == ViewWeek {
		first = localtime.StartOfWeek(anchor, loc)
		n = 7
	} else {
		first = localtime.StartOfDay(anchor, loc)
	}
	days := make([]time.Time, n)
	for i := range days {
		days[i] = first.AddDate(0, 0, i)
	}
	return Window{
		View:  view,
		Start: first.UTC(),
		End:   first.AddDate(0, 0, n).Add(-time.Nanosecond).UTC(),
		Days:  days,
	}
}

// Snap floors t to the 15-minute grid of the clinic's wall clock.
func Snap(t time.Time, loc *time.Location) time.Time {
	l := t.In(loc)
	m := l.Minute() - l.Minute()%SlotMinutes
	return time.Date(l.Year(), l.Month(), l.Day(), l.Hour(), m, 0, 0, loc).UTC()
}

// SlotIndex is the position of t within its day's visible slots, clamped to
// the grid.
func SlotIndex(t time.Time, loc *time.Location) int {
	l := t.In(loc)
	idx := ((l.Hour()-DayStartHour)*60 + l.Minute()) / SlotMinutes
	if idx < 0 {
		return 0
	}
	if idx >= SlotsPerDay {
		return SlotsPerDay - 1
	}
	return idx
}

// SlotLabels lists the start time of every visible slot, "07:00" to "19:45".
func SlotLabels() []string {
	labels := make([]string, SlotsPerDay)
	for i := range labels {
		m := DayStartHour*60 + i*SlotMinutes
		labels[i] = fmt.Sprintf("%02d:%02d", m/60, m%60)
	}
	return labels
}

// InVisibleHours reports whether t falls within 07:00 to 20:00.
func InVisibleHours(t time.Time, loc *time.Location) bool {
	l := t.In(loc)
	m := l.Hour()*60 + l.Minute()
	return m >= DayStartHour*60 && m < DayEndHour*60
}

// Event is a session placed on the grid.
type Event struct {
	ID        int64  `json:"id"`
	PatientID int64  `json:"clienteId"`
	Title     string `json:"titulo"`
	Start     string `json:"inicio"`
	End       string `json:"fim"`
	Status    string `json:"status"`
	Color     string `json:"cor"`
	Busy      bool   `json:"ocupado"`
	Slot      int    `json:"slot"`
	Span      int    `json:"slots"`
}

type Day struct {
	Date   string  `json:"data"`
	Events []Event `json:"eventos"`
}

type Grid struct {
	View   View     `json:"visao"`
	Start  string   `json:"inicio"`
	End    string   `json:"fim"`
	Slots  []string `json:"horarios"`
	Days   []Day    `json:"dias"`
	Colors ColorMap `json:"cores"`
}

// ColorMap is the status to color contract sent with every grid.
type ColorMap map[scheduling.Status]string

func colorMap() ColorMap {
	m := make(ColorMap, len(scheduling.Statuses))
	for _, s := range scheduling.Statuses {
		m[s] = Color(s)
	}
	return m
}

func newEvent(s *scheduling.Session, busy bool, loc *time.Location) Event {
	span := int((s.Duration() + slotLength - 1) / slotLength)
	if span < 1 {
		span = 1
	}
	return Event{
		ID:        s.ID,
		PatientID: s.PatientID,
		Title:     s.Label,
		Start:     localtime.Format(s.Start, loc),
		End:       localtime.Format(s.End, loc),
		Status:    string(s.Status),
		Color:     Color(s.Status),
		Busy:      busy,
		Slot:      SlotIndex(s.Start, loc),
		Span:      span,
	}
}

func sortSessions(items []*scheduling.Session) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].Start.Equal(items[j].Start) {
			return items[i].Start.Before(items[j].Start)
		}
		return items[i].ID < items[j].ID
	})
}

// BuildGrid places sessions on the days of w, earliest first within a day.
// Sessions outside w are skipped.
func BuildGrid(w Window, sessions []*scheduling.Session, busy func(id int64) bool, loc *time.Location) Grid {
	g := Grid{
		View:   w.View,
		Start:  localtime.Format(w.Start, loc),
		End:    localtime.Format(w.End, loc),
		Slots:  SlotLabels(),
		Days:   make([]Day, len(w.Days)),
		Colors: colorMap(),
	}
	index := make(map[string]int, len(w.Days))
	for i, d := range w.Days {
		date := localtime.FormatDate(d, loc)
		g.Days[i] = Day{Date: date, Events: []Event{}}
		index[date] = i
	}
	ordered := append([]*scheduling.Session(nil), sessions...)
	sortSessions(ordered)
	for _, s := range ordered {
		i, ok := index[localtime.FormatDate(s.Start, loc)]
		if !ok {
			continue
		}
		g.Days[i].Events = append(g.Days[i].Events, newEvent(s, busy != nil && busy(s.ID), loc))
	}
	return g
}

// SlotHint is the "new session" request emitted for an empty slot. The
// calendar never books sessions itself.
type SlotHint struct {
	Start time.Time
	End   time.Time
}

// SelectSlot snaps t to its slot and suggests a default-length session.
func SelectSlot(t time.Time, loc *time.Location) (SlotHint, error) {
	if t.IsZero() {
		return SlotHint{}, apperr.Validation("inicio is required")
	}
	start := Snap(t, loc)
	if !InVisibleHours(start, loc) {
		return SlotHint{}, apperr.Validation("slots run from %02d:00 to %02d:00", DayStartHour, DayEndHour)
	}
	return SlotHint{Start: start, End: start.Add(DefaultNewSessionLength)}, nil
}
