package model

// AnalyticsKind names one of the upstream analytics reports.
type AnalyticsKind string

const (
	AnalyticsDrugCategories AnalyticsKind = "drug-categories"
	AnalyticsCategory       AnalyticsKind = "category"
	AnalyticsClassification AnalyticsKind = "classification"
	AnalyticsDiseases       AnalyticsKind = "diseases"
	AnalyticsDiseaseMonthly AnalyticsKind = "disease-monthly"
)

// NeedsID reports whether the report is scoped to an entity ID.
func (k AnalyticsKind) NeedsID() bool {
	switch k {
	case AnalyticsCategory, AnalyticsClassification, AnalyticsDiseaseMonthly:
		return true
	default:
		return false
	}
}

// Valid reports whether the kind is supported.
func (k AnalyticsKind) Valid() bool {
	switch k {
	case AnalyticsDrugCategories, AnalyticsCategory, AnalyticsClassification, AnalyticsDiseases, AnalyticsDiseaseMonthly:
		return true
	default:
		return false
	}
}

// AnalyticsRow is a named counter; the upstream API sends counts as strings.
type AnalyticsRow struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Count string `json:"count"`
}

// DiseaseMonth is one month of a disease time series.
type DiseaseMonth struct {
	Count           int    `json:"count"`
	CumulativeCount int    `json:"cumulativeCount"`
	DiseaseName     string `json:"diseaseName"`
	Month           int    `json:"month"`
	MonthName       string `json:"monthName"`
}

// Series is a chart-ready projection of an analytics report.
type Series struct {
	Kind   AnalyticsKind `json:"kind"`
	Title  string        `json:"title,omitempty"`
	Labels []string      `json:"labels"`
	Values []float64     `json:"values"`
}
