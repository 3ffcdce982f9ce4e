package main

import (
	"context"
	"fmt"
	"time"

	"github.com/soulsalutte/clinic/internal/domain/assessment"
	"github.com/soulsalutte/clinic/internal/domain/patient"
	"github.com/soulsalutte/clinic/internal/domain/scheduling"
	"github.com/soulsalutte/clinic/pkg/localtime"
)

var demoPatients = []patient.Patient{
	{
		Name: "Maria Silva Santos", Email: "maria.silva@email.com", Phone: "(11) 99876-5432",
		BirthDate: "1985-03-15", Sex: patient.SexFemale, City: "São Paulo", Neighborhood: "Centro",
		Occupation: "Professora", HomeAddress: "Rua das Flores, 123", WorkAddress: "Escola Municipal ABC",
		Nationality: "Brasileira", MaritalStatus: "Casado",
	},
	{
		Name: "João Carlos Oliveira", Email: "joao.carlos@email.com", Phone: "(11) 98765-4321",
		BirthDate: "1978-08-22", Sex: patient.SexMale, City: "São Paulo", Neighborhood: "Vila Madalena",
		Occupation: "Engenheiro", HomeAddress: "Av. Principal, 456", WorkAddress: "Empresa XYZ Ltda",
		Nationality: "Brasileira", MaritalStatus: "Solteiro",
	},
	{
		Name: "Ana Paula Ferreira", Email: "ana.paula@email.com", Phone: "(11) 97654-3210",
		BirthDate: "1992-12-10", Sex: patient.SexFemale, City: "São Paulo", Neighborhood: "Moema",
		Occupation: "Advogada", HomeAddress: "Rua da Alegria, 789", WorkAddress: "Escritório Jurídico ABC",
		Nationality: "Brasileira", MaritalStatus: "Divorciado",
	},
	{
		Name: "Roberto Costa", Email: "roberto.costa@email.com", Phone: "(11) 96543-2109",
		BirthDate: "1960-05-30", Sex: patient.SexMale, City: "São Paulo", Neighborhood: "Liberdade",
		Occupation: "Aposentado", HomeAddress: "Praça Central, 321",
		Nationality: "Brasileira", MaritalStatus: "Viúvo",
	},
	{
		Name: "Carla Mendes", Email: "carla.mendes@email.com", Phone: "(11) 95432-1098",
		BirthDate: "1988-09-18", Sex: patient.SexFemale, City: "São Paulo", Neighborhood: "Pinheiros",
		Occupation: "Designer", HomeAddress: "Rua Nova, 654", WorkAddress: "Studio Design Criativo",
		Nationality: "Brasileira", MaritalStatus: "União Estável",
	},
}

// demoHours are the session start hours used through the demo week.
var demoHours = []int{8, 9, 10, 14, 15, 16, 17}

// seedDemo loads the demo clinic: five patients, a week of one-hour sessions
// from Monday to Friday and one assessment. Sessions already in the past are
// completed, with every fifth one marked as a no-show. A store that already
// holds patients is left untouched and 0 is returned.
func seedDemo(ctx context.Context, patients *patient.Service, sessions *scheduling.Service,
	assessments *assessment.Service, now time.Time, loc *time.Location) (int, error) {
	n, err := patients.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}

	ids := make([]int64, 0, len(demoPatients))
	for i := range demoPatients {
		p := demoPatients[i]
		if err := patients.Create(ctx, &p); err != nil {
			return 0, fmt.Errorf("seed patient %s: %w", p.Name, err)
		}
		ids = append(ids, p.ID)
	}

	notify := true
	monday := localtime.StartOfWeek(now, loc)
	k := 0
	for day := 0; day < 5; day++ {
		date := monday.AddDate(0, 0, day)
		perDay := 2 + day%3
		for j := 0; j < perDay; j++ {
			hour := demoHours[(day+j*2)%len(demoHours)]
			start := time.Date(date.Year(), date.Month(), date.Day(), hour, 0, 0, 0, loc)
			p := demoPatients[k%len(demoPatients)]
			s := &scheduling.Session{
				PatientID: ids[k%len(ids)],
				Label:     p.Name + " - Fisioterapia",
				Start:     start.UTC(),
				End:       start.Add(time.Hour).UTC(),
				Notes:     "Sessão de fisioterapia - " + p.Name,
				Notify:    &notify,
			}
			if err := sessions.Create(ctx, s); err != nil {
				return 0, fmt.Errorf("seed session: %w", err)
			}
			if s.End.Before(now) {
				status := scheduling.StatusCompleted
				if k%5 == 4 {
					status = scheduling.StatusNoShow
				}
				if _, err := sessions.SetStatus(ctx, s.ID, string(status)); err != nil {
					return 0, fmt.Errorf("seed session status: %w", err)
				}
			}
			k++
		}
	}

	a := &assessment.Assessment{
		PatientID: ids[0],
		Date:      localtime.FormatDate(monday, loc),
		Form: assessment.Form{
			ClinicalDiagnosis:    "Lombalgia mecânica",
			PhysioDiagnosis:      "Dor lombar com limitação de flexão de tronco",
			ChiefComplaint:       "Dor na região lombar ao permanecer sentada",
			CurrentIllness:       "Dor há três meses, piora ao final do dia",
			Walking:              true,
			Oriented:             true,
			UsesMedication:       true,
			MedicationDetails:    "Anti-inflamatório quando necessário",
			InspectionNormal:     true,
			PainScore:            6,
			TreatmentGoals:       "Reduzir a dor e recuperar a amplitude de movimento",
			TherapeuticResources: "Terapia manual, cinesioterapia",
			TreatmentPlan:        "Duas sessões semanais por seis semanas",
		},
	}
	if err := assessments.Create(ctx, a); err != nil {
		return 0, fmt.Errorf("seed assessment: %w", err)
	}
	if _, err := assessments.AppendProgressNote(ctx, a.ID, "Paciente relata melhora da dor após a primeira sessão.", monday.Add(9*time.Hour)); err != nil {
		return 0, fmt.Errorf("seed progress note: %w", err)
	}
	return len(ids), nil
}
