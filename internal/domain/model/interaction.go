package model

// DrugInteraction is one pairwise interaction between drugs.
type DrugInteraction struct {
	Description string `json:"description"`
	Drug1       string `json:"drug1"`
	Drug2       string `json:"drug2"`
	Severity    string `json:"severity"`
}

// AllergyConflict flags a drug conflicting with a known allergy.
type AllergyConflict struct {
	Drug     string `json:"drug"`
	Allergen string `json:"allergen"`
	Severity string `json:"severity"`
}

// PatientInteractionReport is the upstream analysis of new drugs against a
// patient's current medication and allergies.
type PatientInteractionReport struct {
	HasAllergies    bool              `json:"hasAllergies"`
	Allergies       []AllergyConflict `json:"allergies"`
	HasInteractions bool              `json:"hasInteractions"`
	Interactions    []DrugInteraction `json:"interactions"`
	Recommendation  string            `json:"recommendation"`
}

// PairwiseInteraction is the upstream verdict for a set of new drugs checked
// against each other. Text[0] is "No" when no interaction exists; otherwise
// Text[1] carries the description and Text[2] the headline.
type PairwiseInteraction struct {
	Text []string `json:"text"`
}

// Found reports whether the upstream verdict flags an interaction.
func (p PairwiseInteraction) Found() bool {
	return len(p.Text) > 0 && p.Text[0] != "No"
}

// Headline returns the verdict headline, if any.
func (p PairwiseInteraction) Headline() string {
	if len(p.Text) > 2 {
		return p.Text[2]
	}
	return ""
}

// Detail returns the verdict description, if any.
func (p PairwiseInteraction) Detail() string {
	if len(p.Text) > 1 {
		return p.Text[1]
	}
	return ""
}

// ViewStatus is the state of a composed view.
type ViewStatus string

const (
	ViewIdle    ViewStatus = "idle"
	ViewLoading ViewStatus = "loading"
	ViewError   ViewStatus = "error"
	ViewEmpty   ViewStatus = "empty"
	ViewData    ViewStatus = "data"
)

// Finding kinds.
const (
	FindingPairwise = "pairwise"
	FindingExisting = "existing"
	FindingAllergy  = "allergy"
)

// InteractionFinding is one normalized concern in the composed view.
type InteractionFinding struct {
	Kind        string   `json:"kind"`
	Drugs       []string `json:"drugs"`
	Severity    string   `json:"severity"`
	Headline    string   `json:"headline,omitempty"`
	Description string   `json:"description,omitempty"`
}

// InteractionView is the composed drug-interaction state for a prescription draft.
type InteractionView struct {
	Status         ViewStatus           `json:"status"`
	Message        string               `json:"message,omitempty"`
	Findings       []InteractionFinding `json:"findings,omitempty"`
	Recommendation string               `json:"recommendation,omitempty"`
	Summary        string               `json:"summary,omitempty"`
}
