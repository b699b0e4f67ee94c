package model

// ReportSummary is one row of the reports listing.
type ReportSummary struct {
	ID          string `json:"id"`
	DoctorName  string `json:"doctorName"`
	PatientName string `json:"patientName"`
	Reviewed    bool   `json:"reviewed"`
}

// ReportList is the listing envelope for reports.
type ReportList struct {
	Message string          `json:"message,omitempty"`
	Reports []ReportSummary `json:"finalResults"`
}

// Report is a full report.
type Report struct {
	ID          string `json:"id"`
	DoctorName  string `json:"doctorName"`
	PatientName string `json:"patientName"`
	Description string `json:"description"`
	Reviewed    bool   `json:"reviewed"`
}

// ReportEnvelope wraps a single report.
type ReportEnvelope struct {
	Message string `json:"message,omitempty"`
	Report  Report `json:"singleReport"`
}
