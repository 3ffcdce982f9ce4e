package patient

import (
	"strings"
	"time"

	"github.com/soulsalutte/clinic/internal/platform/apperr"
	"github.com/soulsalutte/clinic/pkg/localtime"
)

type Sex string

const (
	SexFemale Sex = "F"
	SexMale   Sex = "M"
	SexOther  Sex = "Other"
)

// ParseSex accepts the canonical codes and the legacy "Outro".
func ParseSex(s string) (Sex, bool) {
	switch strings.TrimSpace(s) {
	case "":
		return "", true
	case "F", "f":
		return SexFemale, true
	case "M", "m":
		return SexMale, true
	case "Other", "other", "Outro", "outro":
		return SexOther, true
	}
	return "", false
}

var maritalStatuses = map[string]bool{
	"Solteiro":      true,
	"Casado":        true,
	"Divorciado":    true,
	"Viúvo":         true,
	"União Estável": true,
}

type Patient struct {
	ID            int64     `json:"id"`
	Name          string    `json:"nome"`
	Email         string    `json:"email"`
	Phone         string    `json:"telefone"`
	BirthDate     string    `json:"dataNascimento,omitempty"`
	RegisteredAt  time.Time `json:"dataCadastro"`
	Sex           Sex       `json:"sexo,omitempty"`
	City          string    `json:"cidade,omitempty"`
	Neighborhood  string    `json:"bairro,omitempty"`
	Occupation    string    `json:"profissao,omitempty"`
	HomeAddress   string    `json:"enderecoResidencial,omitempty"`
	WorkAddress   string    `json:"enderecoComercial,omitempty"`
	Nationality   string    `json:"naturalidade,omitempty"`
	MaritalStatus string    `json:"estadoCivil,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Normalize trims text fields and maps legacy literals onto canonical ones.
func (p *Patient) Normalize() error {
	p.Name = strings.Join(strings.Fields(p.Name), " ")
	p.Email = strings.TrimSpace(p.Email)
	p.Phone = strings.TrimSpace(p.Phone)
	p.BirthDate = strings.TrimSpace(p.BirthDate)
	p.MaritalStatus = strings.TrimSpace(p.MaritalStatus)

	sex, ok := ParseSex(string(p.Sex))
	if !ok {
		return apperr.Validation("sexo must be F, M or Other")
	}
	p.Sex = sex
	return nil
}

// Validate checks the fields a patient cannot be stored without.
func (p *Patient) Validate() error {
	if p.Name == "" {
		return apperr.Validation("nome is required")
	}
	if p.Email == "" {
		return apperr.Validation("email is required")
	}
	if !strings.Contains(p.Email, "@") {
		return apperr.Validation("email must contain @")
	}
	if p.Phone == "" {
		return apperr.Validation("telefone is required")
	}
	if p.BirthDate != "" {
		if _, err := localtime.ParseDate(p.BirthDate, time.UTC); err != nil {
			return apperr.Validation("dataNascimento must be a date (YYYY-MM-DD)")
		}
	}
	if p.MaritalStatus != "" && !maritalStatuses[p.MaritalStatus] {
		return apperr.Validation("estadoCivil %q is not recognised", p.MaritalStatus)
	}
	return nil
}
