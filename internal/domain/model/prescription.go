package model

// PrescriptionStatus tracks whether a prescription is still being taken.
type PrescriptionStatus string

const (
	PrescriptionTaking PrescriptionStatus = "taking"
	PrescriptionDone   PrescriptionStatus = "done"
)

// IntakeTime is relative to meals.
type IntakeTime string

const (
	IntakeBefore IntakeTime = "before"
	IntakeAfter  IntakeTime = "after"
)

// Drug is a catalogue entry.
type Drug struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Route string `json:"route,omitempty"`
}

// DrugSearchResult wraps drug catalogue search hits.
type DrugSearchResult struct {
	Message string `json:"message,omitempty"`
	Drugs   []Drug `json:"drugs"`
}

// PrescribedDrug is one line of a prescription.
type PrescribedDrug struct {
	ID        string     `json:"id"`
	Dosage    string     `json:"dosage"`
	Frequency string     `json:"frequency"`
	Drug      Drug       `json:"drug"`
	Time      IntakeTime `json:"time,omitempty"`
}

// Prescription is a set of drugs a doctor prescribed to a patient.
type Prescription struct {
	ID              string             `json:"id"`
	Doctor          Doctor             `json:"doctor"`
	Patient         Patient            `json:"patient"`
	PrescribedDrugs []PrescribedDrug   `json:"prescribedDrugs,omitempty"`
	StartDate       string             `json:"start_date"`
	Status          PrescriptionStatus `json:"status"`
	Description     *string            `json:"description,omitempty"`
}

// PrescriptionList is the listing envelope with completion counters.
type PrescriptionList struct {
	Message       string         `json:"message,omitempty"`
	Prescriptions []Prescription `json:"prescriptions"`
	NotCompleted  int            `json:"notCompleted"`
	Completed     int            `json:"completed"`
}

// Medication is one requested drug line when creating a prescription.
type Medication struct {
	Drug      Drug       `json:"drug"`
	Frequency string     `json:"frequency"`
	Dose      string     `json:"dose"`
	Time      IntakeTime `json:"time,omitempty"`
}

// CreatePrescriptionRequest is the payload for creating a prescription.
type CreatePrescriptionRequest struct {
	DoctorID    string       `json:"doctorId"`
	PatientID   string       `json:"patientId"`
	Medications []Medication `json:"medications"`
	Description string       `json:"description,omitempty"`
}

// DrugNames returns the names of the requested drugs in order.
func (r CreatePrescriptionRequest) DrugNames() []string {
	out := make([]string, 0, len(r.Medications))
	for _, m := range r.Medications {
		out = append(out, m.Drug.Name)
	}
	return out
}

// PrescriptionEnvelope is the single-prescription response.
type PrescriptionEnvelope struct {
	Message      string       `json:"message,omitempty"`
	Prescription Prescription `json:"prescription"`
}
