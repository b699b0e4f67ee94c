//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import domainauth "github.com/target/clinic-portal/internal/domain/auth"

// BloodType is one of the ABO/Rh groups accepted by the upstream API.
type BloodType string

const (
	BloodAPos    BloodType = "A+"
	BloodANeg    BloodType = "A-"
	BloodBPos    BloodType = "B+"
	BloodBNeg    BloodType = "B-"
	BloodABPos   BloodType = "AB+"
	BloodABNeg   BloodType = "AB-"
	BloodOPos    BloodType = "O+"
	BloodONeg    BloodType = "O-"
	BloodUnknown BloodType = "Unknown"
)

// Valid reports whether the blood type is supported.
func (b BloodType) Valid() bool {
	switch b {
	case BloodAPos, BloodANeg, BloodBPos, BloodBNeg, BloodABPos, BloodABNeg, BloodOPos, BloodONeg, BloodUnknown:
		return true
	default:
		return false
	}
}

// Doctor is a user registered with a medical license.
type Doctor struct {
	ID                   string          `json:"id"`
	MedicalLicenseNumber string          `json:"medical_license_number"`
	User                 domainauth.User `json:"user"`
}

// Patient is a user registered with a blood type.
type Patient struct {
	ID        string          `json:"id"`
	BloodType BloodType       `json:"blood_type"`
	User      domainauth.User `json:"user"`
}

// UserSummary is a search hit returned by the patient lookup.
type UserSummary struct {
	ID       string `json:"id"`
	FullName string `json:"fullname"`
	NID      string `json:"nid"`
}

// UserSearchResult wraps patient lookup results.
type UserSearchResult struct {
	Users []UserSummary `json:"users"`
}

// ProfileID identifies the doctor or patient profile behind the current user.
type ProfileID struct {
	ProfileID string          `json:"profileId"`
	Role      domainauth.Role `json:"role"`
}

// Speciality is a doctor speciality offered at registration.
type Speciality struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// SpecialityList wraps the speciality catalogue.
type SpecialityList struct {
	Message      string       `json:"message,omitempty"`
	Specialities []Speciality `json:"specialities"`
}

// PatientRecord aggregates everything the upstream API knows about a patient.
type PatientRecord struct {
	ID            string           `json:"id"`
	User          domainauth.User  `json:"user"`
	Allergies     []PatientAllergy `json:"allergies"`
	Diagnoses     []string         `json:"diagnoses"`
	Prescriptions []Prescription   `json:"prescriptions"`
	Patient       Patient          `json:"patient"`
}

// PatientRegistration is the sign-up payload for patients.
type PatientRegistration struct {
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	NID       string    `json:"nid"`
	Email     string    `json:"email"`
	Password  string    `json:"password"`
	BirthDate string    `json:"birth_date"`
	Gender    string    `json:"gender"`
	BloodType BloodType `json:"blood_type"`
	Role      string    `json:"role"`
}

// DoctorRegistration is the sign-up payload for doctors.
type DoctorRegistration struct {
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	NID        string    `json:"nid"`
	Email      string    `json:"email"`
	Password   string    `json:"password"`
	BirthDate  string    `json:"birth_date"`
	Gender     string    `json:"gender"`
	BloodType  BloodType `json:"blood_type"`
	License    string    `json:"license"`
	Speciality string    `json:"speciality"`
	Role       string    `json:"role"`
}
