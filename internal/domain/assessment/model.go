package assessment

import (
	"sort"
	"strings"
	"time"

	"github.com/soulsalutte/clinic/internal/platform/apperr"
	"github.com/soulsalutte/clinic/pkg/localtime"
)

const (
	MinPain = 0
	MaxPain = 10
)

// Form holds the clinical fields of a physiotherapy assessment. It is
// replaced as a whole on update.
type Form struct {
	// Diagnosis
	ClinicalDiagnosis string `json:"diagnosticoClinico"`
	PhysioDiagnosis   string `json:"diagnosticoFisioterapeutico"`

	// Clinical history
	ClinicalHistory string `json:"historiaClinica"`
	ChiefComplaint  string `json:"queixaPrincipal"`
	Lifestyle       string `json:"habitosVida"`
	CurrentIllness  string `json:"hma"`
	PastIllness     string `json:"hmp"`
	PersonalHistory string `json:"antecedentesPessoais"`
	FamilyHistory   string `json:"antecedentesFamiliares"`
	PriorTreatments string `json:"tratamentosRealizados"`

	// Physical exam: presentation
	Walking            bool `json:"deambulando"`
	WalkingWithSupport bool `json:"deambulandoComApoio"`
	Wheelchair         bool `json:"cadeiraDeRodas"`
	Hospitalized       bool `json:"internado"`
	Oriented           bool `json:"orientado"`

	HasExams          bool   `json:"temExamesComplementares"`
	ExamsDescription  string `json:"examesComplementaresDescricao"`
	UsesMedication    bool   `json:"usaMedicamentos"`
	MedicationDetails string `json:"medicamentosDescricao"`
	HadSurgery        bool   `json:"realizouCirurgia"`
	SurgeryDetails    string `json:"cirurgiasDescricao"`

	// Physical exam: inspection and palpation
	InspectionNormal            bool   `json:"inspecaoNormal"`
	InspectionEdema             bool   `json:"inspecaoEdema"`
	InspectionIncompleteHealing bool   `json:"inspecaoCicatrizacaoIncompleta"`
	InspectionErythema          bool   `json:"inspecaoEritemas"`
	InspectionOther             bool   `json:"inspecaoOutros"`
	InspectionOtherDescription  string `json:"inspecaoOutrosDescricao"`

	Semiology     string `json:"semiologia"`
	SpecificTests string `json:"testesEspecificos"`
	PainScore     int    `json:"avaliacaoDor"`

	// Therapeutic plan
	TreatmentGoals       string `json:"objetivosTratamento"`
	TherapeuticResources string `json:"recursosTerapeuticos"`
	TreatmentPlan        string `json:"planoTratamento"`
}

// ProgressNote is one entry of the append-only evolution log.
type ProgressNote struct {
	ID        int64     `json:"id"`
	Text      string    `json:"evolucao"`
	// Timestamp is written as RFC 3339 in UTC. Input also accepts clinic
	// wall-clock time, so a value read back from a response parses to the
	// same instant.
	Timestamp time.Time `json:"dataEvolucao"`
}

type Assessment struct {
	ID        int64  `json:"id"`
	PatientID int64  `json:"clienteId"`
	Date      string `json:"dataAvaliacao"`
	Form
	Notes     []ProgressNote `json:"evolucoes"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Clone returns a deep copy.
func (a *Assessment) Clone() *Assessment {
	cp := *a
	cp.Notes = make([]ProgressNote, len(a.Notes))
	copy(cp.Notes, a.Notes)
	return &cp
}

// SortNotes orders notes newest first, later ids first on equal timestamps.
func SortNotes(notes []ProgressNote) {
	sort.SliceStable(notes, func(i, j int) bool {
		if !notes[i].Timestamp.Equal(notes[j].Timestamp) {
			return notes[i].Timestamp.After(notes[j].Timestamp)
		}
		return notes[i].ID > notes[j].ID
	})
}

// AssessedOn parses Date in loc.
func (a *Assessment) AssessedOn(loc *time.Location) (time.Time, error) {
	return localtime.ParseDate(a.Date, loc)
}

func (a *Assessment) Validate() error {
	if a.PatientID <= 0 {
		return apperr.Validation("clienteId is required")
	}
	if a.PainScore < MinPain || a.PainScore > MaxPain {
		return apperr.Validation("avaliacaoDor must be between %d and %d", MinPain, MaxPain)
	}
	if a.Date != "" {
		if _, err := localtime.ParseDate(a.Date, time.UTC); err != nil {
			return apperr.Validation("dataAvaliacao must be a date in YYYY-MM-DD format")
		}
	}
	return nil
}

func (n *ProgressNote) Validate() error {
	n.Text = strings.TrimSpace(n.Text)
	if n.Text == "" {
		return apperr.Validation("evolucao is required")
	}
	return nil
}

// touchTime is the updatedAt an assessment gets when note is appended: the
// latest of now, the note timestamp and the creation time.
func touchTime(now time.Time, note ProgressNote, created time.Time) time.Time {
	t := now
	if note.Timestamp.After(t) {
		t = note.Timestamp
	}
	if created.After(t) {
		t = created
	}
	return t
}
