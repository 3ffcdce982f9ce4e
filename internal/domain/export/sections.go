// Package export renders an assessment and its patient into a paginated
// printable document.
package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/soulsalutte/clinic/internal/domain/assessment"
	"github.com/soulsalutte/clinic/internal/domain/patient"
	"github.com/soulsalutte/clinic/pkg/localtime"
)

const (
	NotInformed = "Not informed"
	yes         = "Yes"
	no          = "No"

	displayDate = "02/01/2006"
)

type Style int

const (
	StyleSection Style = iota
	StyleSubsection
	StyleText
	StyleEmphasis
)

// Line is one logical paragraph of the document before wrapping.
type Line struct {
	Text  string
	Style Style
}

// Input is what every section renders from.
type Input struct {
	Assessment *assessment.Assessment
	Patient    *patient.Patient
	Location   *time.Location
}

// Renderer produces the body of a section. Returning no lines omits the
// section, heading included.
type Renderer func(in Input) []Line

type Section struct {
	Title  string
	Render Renderer
}

// Sections is the fixed order of an assessment document.
func Sections() []Section {
	return []Section{
		{Title: "1. PATIENT DETAILS", Render: renderPatient},
		{Title: "2. ASSESSMENT DATE", Render: renderDate},
		{Title: "3. DIAGNOSES", Render: renderDiagnoses},
		{Title: "4. CLINICAL HISTORY", Render: renderHistory},
		{Title: "5. PHYSICAL EXAMINATION", Render: renderExam},
		{Title: "6. THERAPEUTIC PLAN", Render: renderPlan},
		{Title: "7. PROGRESS NOTES", Render: renderNotes},
	}
}

// Compose runs every section renderer and returns the document's lines.
func Compose(sections []Section, in Input) []Line {
	var out []Line
	for _, s := range sections {
		body := s.Render(in)
		if len(body) == 0 {
			continue
		}
		out = append(out, Line{Text: s.Title, Style: StyleSection})
		out = append(out, body...)
	}
	return out
}

func orNotInformed(s string) string {
	if strings.TrimSpace(s) == "" {
		return NotInformed
	}
	return s
}

func text(s string) Line       { return Line{Text: orNotInformed(s), Style: StyleText} }
func subsection(s string) Line { return Line{Text: s, Style: StyleSubsection} }

func field(label, value string) []Line {
	return []Line{subsection(label), text(value)}
}

type flag struct {
	label string
	on    bool
}

// checked joins the labels of the set flags, or NotInformed if none is set.
func checked(flags ...flag) string {
	var labels []string
	for _, f := range flags {
		if f.on {
			labels = append(labels, f.label)
		}
	}
	if len(labels) == 0 {
		return NotInformed
	}
	return strings.Join(labels, ", ")
}

func yesNo(label string, on bool, description string) []Line {
	lines := []Line{subsection(label)}
	if !on {
		return append(lines, Line{Text: no, Style: StyleText})
	}
	return append(lines,
		Line{Text: yes, Style: StyleText},
		Line{Text: "Description: " + orNotInformed(description), Style: StyleText})
}

func formatDate(s string, loc *time.Location) string {
	d, err := localtime.ParseDate(s, loc)
	if err != nil {
		return orNotInformed(s)
	}
	return d.Format(displayDate)
}

func renderPatient(in Input) []Line {
	p := in.Patient
	address := strings.Join(nonEmpty(p.HomeAddress, p.Neighborhood, p.City), ", ")
	return []Line{
		{Text: "Name: " + orNotInformed(p.Name), Style: StyleEmphasis},
		{Text: "Birth date: " + formatDate(p.BirthDate, in.Location), Style: StyleText},
		{Text: "Email: " + orNotInformed(p.Email), Style: StyleText},
		{Text: "Phone: " + orNotInformed(p.Phone), Style: StyleText},
		{Text: "Occupation: " + orNotInformed(p.Occupation), Style: StyleText},
		{Text: "Address: " + orNotInformed(address), Style: StyleText},
	}
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

func renderDate(in Input) []Line {
	return []Line{{Text: "Date: " + formatDate(in.Assessment.Date, in.Location), Style: StyleEmphasis}}
}

func renderDiagnoses(in Input) []Line {
	a := in.Assessment
	var lines []Line
	lines = append(lines, field("Clinical diagnosis:", a.ClinicalDiagnosis)...)
	lines = append(lines, field("Physiotherapy diagnosis:", a.PhysioDiagnosis)...)
	return lines
}

func renderHistory(in Input) []Line {
	a := in.Assessment
	var lines []Line
	for _, f := range []struct{ label, value string }{
		{"Clinical history:", a.ClinicalHistory},
		{"Chief complaint:", a.ChiefComplaint},
		{"History of present illness:", a.CurrentIllness},
		{"Past medical history:", a.PastIllness},
		{"Personal history:", a.PersonalHistory},
		{"Family history:", a.FamilyHistory},
		{"Lifestyle:", a.Lifestyle},
		{"Previous treatments:", a.PriorTreatments},
	} {
		lines = append(lines, field(f.label, f.value)...)
	}
	return lines
}

func renderExam(in Input) []Line {
	a := in.Assessment
	var lines []Line
	lines = append(lines, subsection("5.1 Presentation:"), text(checked(
		flag{"Walking", a.Walking},
		flag{"Walking with support", a.WalkingWithSupport},
		flag{"Wheelchair", a.Wheelchair},
		flag{"Hospitalized", a.Hospitalized},
		flag{"Oriented", a.Oriented},
	)))
	lines = append(lines, yesNo("5.2 Complementary exams:", a.HasExams, a.ExamsDescription)...)
	lines = append(lines, yesNo("5.3 Medication:", a.UsesMedication, a.MedicationDetails)...)
	lines = append(lines, yesNo("5.4 Surgery:", a.HadSurgery, a.SurgeryDetails)...)

	other := "Other"
	if a.InspectionOther && strings.TrimSpace(a.InspectionOtherDescription) != "" {
		other = "Other: " + a.InspectionOtherDescription
	}
	lines = append(lines, subsection("5.5 Inspection and palpation:"), text(checked(
		flag{"Normal", a.InspectionNormal},
		flag{"Edema", a.InspectionEdema},
		flag{"Incomplete healing", a.InspectionIncompleteHealing},
		flag{"Erythema", a.InspectionErythema},
		flag{other, a.InspectionOther},
	)))
	lines = append(lines, field("5.6 Semiology:", a.Semiology)...)
	lines = append(lines, field("5.7 Specific tests:", a.SpecificTests)...)
	lines = append(lines, subsection("5.8 Pain assessment (0-10):"),
		Line{Text: fmt.Sprintf("%d/10", a.PainScore), Style: StyleEmphasis})
	return lines
}

func renderPlan(in Input) []Line {
	a := in.Assessment
	var lines []Line
	lines = append(lines, field("Treatment goals:", a.TreatmentGoals)...)
	lines = append(lines, field("Therapeutic resources:", a.TherapeuticResources)...)
	lines = append(lines, field("Treatment plan:", a.TreatmentPlan)...)
	return lines
}

func renderNotes(in Input) []Line {
	var lines []Line
	for _, n := range in.Assessment.Notes {
		lines = append(lines, subsection(n.Timestamp.In(in.Location).Format(displayDate)+":"), text(n.Text))
	}
	return lines
}
