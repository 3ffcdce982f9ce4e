package scheduling

import (
	"strings"
	"time"

	"github.com/soulsalutte/clinic/internal/platform/apperr"
	"github.com/soulsalutte/clinic/pkg/localtime"
)

type Status string

const (
	StatusScheduled Status = "SCHEDULED"
	StatusCompleted Status = "COMPLETED"
	StatusCanceled  Status = "CANCELED"
	StatusNoShow    Status = "NO_SHOW"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusScheduled, StatusCompleted, StatusCanceled, StatusNoShow}

var statusAliases = map[string]Status{
	"SCHEDULED": StatusScheduled,
	"AGENDADA":  StatusScheduled,
	"COMPLETED": StatusCompleted,
	"CONCLUIDA": StatusCompleted,
	"CONCLUÍDA": StatusCompleted,
	"CANCELED":  StatusCanceled,
	"CANCELLED": StatusCanceled,
	"CANCELADA": StatusCanceled,
	"NO_SHOW":   StatusNoShow,
	"NOSHOW":    StatusNoShow,
	"FALTA":     StatusNoShow,
}

// ParseStatus maps canonical names and the legacy Portuguese literals onto
// a Status.
func ParseStatus(s string) (Status, error) {
	if st, ok := statusAliases[strings.ToUpper(strings.TrimSpace(s))]; ok {
		return st, nil
	}
	return "", apperr.Validation("status %q is not one of SCHEDULED, COMPLETED, CANCELED, NO_SHOW", s)
}

type Session struct {
	ID        int64
	PatientID int64
	Label     string
	Start     time.Time
	End       time.Time
	Status    Status
	Notes     string
	Notify    *bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s *Session) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	cp := *s
	if s.Notify != nil {
		n := *s.Notify
		cp.Notify = &n
	}
	return &cp
}

func validateWindow(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return apperr.Validation("dataHoraInicio and dataHoraFim are required")
	}
	if !end.After(start) {
		return apperr.Validation("dataHoraFim must be after dataHoraInicio")
	}
	return nil
}

func (s *Session) Validate() error {
	if s.PatientID <= 0 {
		return apperr.Validation("clienteId is required")
	}
	return validateWindow(s.Start, s.End)
}

// Wire is the JSON shape of a session. Times are clinic wall-clock strings.
type Wire struct {
	ID        int64  `json:"id"`
	PatientID int64  `json:"clienteId"`
	Label     string `json:"nome"`
	Start     string `json:"dataHoraInicio"`
	End       string `json:"dataHoraFim"`
	Status    string `json:"status"`
	Notes     string `json:"notasSessao"`
	Notify    *bool  `json:"notificacao,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

func (s *Session) ToWire(loc *time.Location) Wire {
	w := Wire{
		ID:        s.ID,
		PatientID: s.PatientID,
		Label:     s.Label,
		Start:     localtime.Format(s.Start, loc),
		End:       localtime.Format(s.End, loc),
		Status:    string(s.Status),
		Notes:     s.Notes,
		Notify:    s.Notify,
	}
	if !s.CreatedAt.IsZero() {
		w.CreatedAt = s.CreatedAt.UTC().Format(time.RFC3339)
	}
	if !s.UpdatedAt.IsZero() {
		w.UpdatedAt = s.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return w
}

// ToWireList converts a slice, never returning nil.
func ToWireList(items []*Session, loc *time.Location) []Wire {
	out := make([]Wire, 0, len(items))
	for _, s := range items {
		out = append(out, s.ToWire(loc))
	}
	return out
}

// FromWire decodes w. An empty status is left empty for the service to fill.
func FromWire(w Wire, loc *time.Location) (*Session, error) {
	s := &Session{
		ID:        w.ID,
		PatientID: w.PatientID,
		Label:     strings.TrimSpace(w.Label),
		Notes:     w.Notes,
		Notify:    w.Notify,
	}
	var err error
	if s.Start, err = localtime.Parse(w.Start, loc); err != nil {
		return nil, apperr.Validation("dataHoraInicio: %v", err)
	}
	if s.End, err = localtime.Parse(w.End, loc); err != nil {
		return nil, apperr.Validation("dataHoraFim: %v", err)
	}
	if w.Status != "" {
		if s.Status, err = ParseStatus(w.Status); err != nil {
			return nil, err
		}
	}
	return s, nil
}
