package model

// Severity grades a diagnosis.
type Severity string

const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeverityAcute    Severity = "acute"
	SeveritySevere   Severity = "severe"
	SeverityChronic  Severity = "chronic"
)

// Valid reports whether the severity is supported.
func (s Severity) Valid() bool {
	switch s {
	case SeverityMild, SeverityModerate, SeverityAcute, SeveritySevere, SeverityChronic:
		return true
	default:
		return false
	}
}

// Disease is a catalogue entry.
type Disease struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DiseaseSearchResult wraps disease catalogue search hits.
type DiseaseSearchResult struct {
	Message  string    `json:"message,omitempty"`
	Diseases []Disease `json:"diseases"`
}

// Diagnosis is a disease recorded against a patient.
type Diagnosis struct {
	ID          string   `json:"id"`
	Severity    Severity `json:"severity"`
	Notes       *string  `json:"notes"`
	DiagnosedAt string   `json:"diagnosed_at"`
	Disease     Disease  `json:"disease"`
}

// DiagnosisList is the listing envelope for a patient's diagnoses.
type DiagnosisList struct {
	Message   string      `json:"message,omitempty"`
	Diagnoses []Diagnosis `json:"diagnosis"`
}

// CreateDiagnosisRequest is the payload for recording a diagnosis.
type CreateDiagnosisRequest struct {
	DoctorID  string   `json:"doctorId"`
	PatientID string   `json:"patientId"`
	DiseaseID string   `json:"diseaseId"`
	Severity  Severity `json:"severity"`
	Notes     string   `json:"notes,omitempty"`
}
