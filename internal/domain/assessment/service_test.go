package assessment

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/soulsalutte/clinic/internal/platform/apperr"
)

type stubPatients map[int64]bool

func (s stubPatients) WhileExists(ctx context.Context, id int64, fn func(ctx context.Context) error) error {
	if !s[id] {
		return apperr.NotFound("patient %d not found", id)
	}
	return fn(ctx)
}

func newTestService() *Service {
	svc := NewService(NewMemoryRepo(), stubPatients{1: true}, time.UTC)
	svc.now = func() time.Time { return time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC) }
	return svc
}

func validAssessment() *Assessment {
	return &Assessment{
		PatientID: 1,
		Date:      "2024-06-03",
		Form: Form{
			ClinicalDiagnosis: "Lombalgia",
			ChiefComplaint:    "Dor lombar",
			Walking:           true,
			PainScore:         7,
		},
	}
}

func TestService_Create(t *testing.T) {
	svc := newTestService()
	a := validAssessment()
	if err := svc.Create(context.Background(), a); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if a.ID == 0 || a.CreatedAt.IsZero() {
		t.Errorf("expected id and createdAt to be assigned, got %+v", a)
	}
	if a.Notes == nil || len(a.Notes) != 0 {
		t.Errorf("expected an empty note list, got %v", a.Notes)
	}
}

func TestService_Create_DefaultsDate(t *testing.T) {
	svc := newTestService()
	a := validAssessment()
	a.Date = ""
	if err := svc.Create(context.Background(), a); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if a.Date != "2024-06-03" {
		t.Errorf("expected today's date, got %q", a.Date)
	}
}

func TestService_Create_Invalid(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	for _, pain := range []int{-1, 11} {
		a := validAssessment()
		a.PainScore = pain
		if err := svc.Create(ctx, a); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("pain %d: expected validation error, got %v", pain, err)
		}
	}
	for _, pain := range []int{0, 10} {
		a := validAssessment()
		a.PainScore = pain
		if err := svc.Create(ctx, a); err != nil {
			t.Errorf("pain %d: unexpected error %v", pain, err)
		}
	}

	a := validAssessment()
	a.PatientID = 42
	if err := svc.Create(ctx, a); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found for unknown patient, got %v", err)
	}

	a = validAssessment()
	a.Date = "03/06/2024"
	if err := svc.Create(ctx, a); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for date, got %v", err)
	}
}

func TestService_AppendProgressNote(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	a := validAssessment()
	_ = svc.Create(ctx, a)

	got, err := svc.AppendProgressNote(ctx, a.ID, "Improved ROM", time.Time{})
	if err != nil {
		t.Fatalf("AppendProgressNote: %v", err)
	}
	if len(got.Notes) != 1 || got.Notes[0].Text != "Improved ROM" {
		t.Fatalf("unexpected notes %+v", got.Notes)
	}
	if got.UpdatedAt.Before(got.CreatedAt) {
		t.Errorf("updatedAt %v precedes createdAt %v", got.UpdatedAt, got.CreatedAt)
	}
	if got.UpdatedAt.Before(got.Notes[0].Timestamp) {
		t.Errorf("updatedAt %v precedes note timestamp %v", got.UpdatedAt, got.Notes[0].Timestamp)
	}
}

func TestService_AppendProgressNote_Monotonic(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	a := validAssessment()
	_ = svc.Create(ctx, a)

	base := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	prev, _ := svc.Get(ctx, a.ID)
	for i, text := range []string{"first", "second", "third"} {
		got, err := svc.AppendProgressNote(ctx, a.ID, text, base.Add(time.Duration(i)*24*time.Hour))
		if err != nil {
			t.Fatalf("append %q: %v", text, err)
		}
		if len(got.Notes) != len(prev.Notes)+1 {
			t.Fatalf("expected %d notes, got %d", len(prev.Notes)+1, len(got.Notes))
		}
		if got.Notes[0].Text != text {
			t.Errorf("expected newest note %q first, got %q", text, got.Notes[0].Text)
		}
		if !reflect.DeepEqual(got.Notes[1:], prev.Notes) {
			t.Errorf("prior notes changed: %+v vs %+v", got.Notes[1:], prev.Notes)
		}
		prev = got
	}
}

func TestService_AppendProgressNote_TiesByID(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	a := validAssessment()
	_ = svc.Create(ctx, a)

	at := time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)
	_, _ = svc.AppendProgressNote(ctx, a.ID, "a", at)
	got, _ := svc.AppendProgressNote(ctx, a.ID, "b", at)
	if got.Notes[0].Text != "b" || got.Notes[0].ID < got.Notes[1].ID {
		t.Errorf("expected later id first on equal timestamps, got %+v", got.Notes)
	}
}

func TestService_AppendProgressNote_Invalid(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	a := validAssessment()
	_ = svc.Create(ctx, a)

	if _, err := svc.AppendProgressNote(ctx, a.ID, "   ", time.Time{}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
	if _, err := svc.AppendProgressNote(ctx, 99, "text", time.Time{}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	stored, _ := svc.Get(ctx, a.ID)
	if len(stored.Notes) != 0 {
		t.Errorf("rejected note was stored: %+v", stored.Notes)
	}
}

func TestService_Update_KeepsNotes(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	a := validAssessment()
	_ = svc.Create(ctx, a)
	_, _ = svc.AppendProgressNote(ctx, a.ID, "first visit", time.Time{})

	change := &Assessment{ID: a.ID, Form: Form{PainScore: 3, TreatmentPlan: "TENS"}}
	if err := svc.Update(ctx, change); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if change.PatientID != 1 || change.Date != "2024-06-03" || change.PainScore != 3 {
		t.Errorf("unexpected updated assessment %+v", change)
	}
	if len(change.Notes) != 1 {
		t.Errorf("expected notes to survive update, got %+v", change.Notes)
	}

	other := &Assessment{ID: a.ID, PatientID: 2}
	if err := svc.Update(ctx, other); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for patient change, got %v", err)
	}
}

func TestService_ListAndCount(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	first := validAssessment()
	first.Date = "2024-05-01"
	_ = svc.Create(ctx, first)
	_ = svc.Create(ctx, validAssessment())

	items, _ := svc.ListByPatient(ctx, 1)
	if len(items) != 2 || items[0].Date != "2024-06-03" {
		t.Errorf("expected newest assessment first, got %+v", items)
	}
	if n, _ := svc.CountByPatient(ctx, 1); n != 2 {
		t.Errorf("expected 2, got %d", n)
	}
	if err := svc.Delete(ctx, first.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	all, _ := svc.List(ctx)
	if len(all) != 1 {
		t.Errorf("expected 1 assessment after delete, got %d", len(all))
	}
}
