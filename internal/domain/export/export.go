package export

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/soulsalutte/clinic/internal/domain/assessment"
	"github.com/soulsalutte/clinic/internal/domain/patient"
	"github.com/soulsalutte/clinic/internal/platform/apperr"
	"github.com/soulsalutte/clinic/internal/platform/metrics"
	"github.com/soulsalutte/clinic/pkg/localtime"
)

type AssessmentSource interface {
	Get(ctx context.Context, id int64) (*assessment.Assessment, error)
}

type PatientSource interface {
	Get(ctx context.Context, id int64) (*patient.Patient, error)
}

// File is a rendered document ready for download.
type File struct {
	Name    string
	Content []byte
	Pages   int
}

type Exporter struct {
	assessments AssessmentSource
	patients    PatientSource
	clinicName  string
	loc         *time.Location
	metrics     *metrics.Metrics
	logger      zerolog.Logger
	now         func() time.Time
}

func NewExporter(assessments AssessmentSource, patients PatientSource, clinicName string, loc *time.Location, m *metrics.Metrics, logger zerolog.Logger) *Exporter {
	if loc == nil {
		loc = time.UTC
	}
	return &Exporter{
		assessments: assessments,
		patients:    patients,
		clinicName:  clinicName,
		loc:         loc,
		metrics:     m,
		logger:      logger,
		now:         time.Now,
	}
}

var whitespace = regexp.MustCompile(`\s+`)

// Filename is Assessment_<name>_<dd-mm-yyyy>.pdf with runs of whitespace in
// the name replaced by underscores.
func Filename(patientName, assessmentDate string, loc *time.Location) string {
	name := whitespace.ReplaceAllString(strings.TrimSpace(patientName), "_")
	date := assessmentDate
	if d, err := localtime.ParseDate(assessmentDate, loc); err == nil {
		date = d.Format("02-01-2006")
	}
	return "Assessment_" + name + "_" + date + ".pdf"
}

func (e *Exporter) title() string {
	if e.clinicName == "" {
		return "Physiotherapy Assessment"
	}
	return e.clinicName + " - Physiotherapy Assessment"
}

// Render is the pure part of an export: the same inputs and clock always
// give the same document.
func (e *Exporter) Render(a *assessment.Assessment, p *patient.Patient, generatedAt time.Time) (*File, error) {
	lines := Compose(Sections(), Input{Assessment: a, Patient: p, Location: e.loc})
	content, pages, err := RenderPDF(lines, Meta{Title: e.title(), GeneratedAt: generatedAt, Location: e.loc})
	if err != nil {
		return nil, err
	}
	return &File{Name: Filename(p.Name, a.Date, e.loc), Content: content, Pages: pages}, nil
}

// Export loads an assessment with its patient and renders it.
func (e *Exporter) Export(ctx context.Context, assessmentID int64) (*File, error) {
	a, err := e.assessments.Get(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	p, err := e.patients.Get(ctx, a.PatientID)
	if err != nil {
		return nil, err
	}
	f, err := e.Render(a, p, e.now())
	if err != nil {
		e.metrics.ObserveExport(false, 0)
		e.logger.Error().Err(err).Int64("assessment_id", assessmentID).Msg("assessment export failed")
		return nil, apperr.Transport(err, "render assessment %d", assessmentID)
	}
	e.metrics.ObserveExport(true, f.Pages)
	e.logger.Info().
		Int64("assessment_id", assessmentID).
		Int("pages", f.Pages).
		Msg("assessment exported")
	return f, nil
}
