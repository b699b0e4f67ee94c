package model

// Allergy is a catalogue entry.
type Allergy struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PatientAllergy links a patient to an allergy.
type PatientAllergy struct {
	ID      string `json:"id"`
	Allergy string `json:"allergy"`
}

// PatientAllergyList is the listing envelope for a patient's allergies.
type PatientAllergyList struct {
	Allergies []PatientAllergy `json:"allergies"`
}

// AddAllergyRequest is the payload for recording an allergy for the current patient.
type AddAllergyRequest struct {
	AllergyID string `json:"allergyId"`
}
