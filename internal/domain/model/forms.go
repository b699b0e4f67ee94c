package model

import (
	"net/mail"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	minNIDLength      = 14
	minPasswordLength = 8
)

// FieldErrors maps a form field to its first validation message.
type FieldErrors map[string]string

// Error lists the failing fields in a stable order.
func (fe FieldErrors) Error() string {
	fields := make([]string, 0, len(fe))
	for f := range fe {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f + ": " + fe[f]
	}
	return "invalid form: " + strings.Join(parts, "; ")
}

// Err returns fe as an error, or nil when no field failed.
func (fe FieldErrors) Err() error {
	if len(fe) == 0 {
		return nil
	}
	return fe
}

func (fe FieldErrors) add(field, msg string) {
	if _, ok := fe[field]; !ok {
		fe[field] = msg
	}
}

func (fe FieldErrors) required(field, value, msg string) {
	if strings.TrimSpace(value) == "" {
		fe.add(field, msg)
	}
}

func (fe FieldErrors) email(field, value string) {
	addr, err := mail.ParseAddress(strings.TrimSpace(value))
	if err != nil || addr.Name != "" {
		fe.add(field, "Invalid email address")
	}
}

func (fe FieldErrors) password(field, value string) {
	if utf8.RuneCountInString(value) < minPasswordLength {
		fe.add(field, "Password must be at least 8 characters long")
	}
}

func (fe FieldErrors) confirm(password, confirmation string) {
	if confirmation == "" {
		fe.add("confirmPassword", "Password confirmation is required")
		return
	}
	if password != confirmation {
		fe.add("confirmPassword", "Passwords do not match")
	}
}

// LoginRequest is the credential pair posted to the login endpoint.
type LoginRequest struct {
	NID      string `json:"nid"`
	Password string `json:"password"`
}

// Validate checks the login form.
func (r LoginRequest) Validate() error {
	fe := FieldErrors{}
	if utf8.RuneCountInString(strings.TrimSpace(r.NID)) < minNIDLength {
		fe.add("nid", "National ID must be at least 14 numbers long")
	}
	fe.password("password", r.Password)
	return fe.Err()
}

// PatientSignUp is the patient registration form.
type PatientSignUp struct {
	PatientRegistration
	ConfirmPassword string `json:"confirmPassword"`
}

// Validate checks the patient registration form.
func (f PatientSignUp) Validate() error {
	fe := FieldErrors{}
	r := f.PatientRegistration
	validatePerson(fe, person{r.FirstName, r.LastName, r.NID, r.Email, r.BirthDate, r.Gender, r.BloodType})
	fe.password("password", r.Password)
	fe.confirm(r.Password, f.ConfirmPassword)
	return fe.Err()
}

// DoctorSignUp is the doctor registration form.
type DoctorSignUp struct {
	DoctorRegistration
	ConfirmPassword string `json:"confirmPassword"`
}

// Validate checks the doctor registration form.
func (f DoctorSignUp) Validate() error {
	fe := FieldErrors{}
	r := f.DoctorRegistration
	validatePerson(fe, person{r.FirstName, r.LastName, r.NID, r.Email, r.BirthDate, r.Gender, r.BloodType})
	fe.password("password", r.Password)
	fe.confirm(r.Password, f.ConfirmPassword)
	fe.required("license", r.License, "License is required")
	fe.required("speciality", r.Speciality, "Speciality is required")
	return fe.Err()
}

type person struct {
	firstName, lastName, nid, email, birthDate, gender string
	bloodType                                          BloodType
}

func validatePerson(fe FieldErrors, p person) {
	fe.required("firstName", p.firstName, "First name is required")
	fe.required("lastName", p.lastName, "Last name is required")
	fe.required("nid", p.nid, "NID is required")
	fe.email("email", p.email)
	fe.required("birth_date", p.birthDate, "Birth date is required")
	fe.required("gender", p.gender, "Gender is required")
	switch {
	case strings.TrimSpace(string(p.bloodType)) == "":
		fe.add("blood_type", "Blood type is required")
	case !p.bloodType.Valid():
		fe.add("blood_type", "Unknown blood type")
	}
}

// ForgotPasswordRequest asks the upstream to mail a reset link.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// Validate checks the forgot-password form.
func (r ForgotPasswordRequest) Validate() error {
	fe := FieldErrors{}
	fe.email("email", r.Email)
	return fe.Err()
}

// ResetPasswordForm is the reset-password form; the token comes from the mailed link.
type ResetPasswordForm struct {
	Token           string `json:"token"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// Validate checks the reset-password form.
func (f ResetPasswordForm) Validate() error {
	fe := FieldErrors{}
	fe.required("token", f.Token, "Reset token is missing")
	fe.password("password", f.Password)
	fe.confirm(f.Password, f.ConfirmPassword)
	return fe.Err()
}

// ResetPasswordRequest is the upstream payload of a password reset.
type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// Validate checks the prescription form.
func (r CreatePrescriptionRequest) Validate() error {
	fe := FieldErrors{}
	fe.required("patientId", r.PatientID, "Patient is required")
	if len(r.Medications) == 0 {
		fe.add("medications", "At least one medication is required")
	}
	for _, m := range r.Medications {
		if strings.TrimSpace(m.Drug.Name) == "" && strings.TrimSpace(m.Drug.ID) == "" {
			fe.add("medications", "Every medication needs a drug")
		}
		if strings.TrimSpace(m.Dose) == "" || strings.TrimSpace(m.Frequency) == "" {
			fe.add("medications", "Every medication needs a dose and frequency")
		}
	}
	return fe.Err()
}

// Validate checks the diagnosis form.
func (r CreateDiagnosisRequest) Validate() error {
	fe := FieldErrors{}
	fe.required("patientId", r.PatientID, "Patient is required")
	fe.required("diseaseId", r.DiseaseID, "Disease is required")
	if !r.Severity.Valid() {
		fe.add("severity", "Unknown severity")
	}
	return fe.Err()
}

// Validate checks the add-allergy form.
func (r AddAllergyRequest) Validate() error {
	fe := FieldErrors{}
	fe.required("allergyId", r.AllergyID, "Allergy is required")
	return fe.Err()
}
