package extract

import "time"

// MaxTextLength bounds how much raw text goes into one extraction call.
const MaxTextLength = 8000

// Candidate is a normalized, not-yet-committed unit of information pulled
// from raw observation text. The decision engine turns candidates into
// store mutations.
type Candidate struct {
	Kind        string  `json:"kind"`
	Category    string  `json:"category"`
	SubjectName string  `json:"subject"`
	Content     string  `json:"content"`
	Predicate   string  `json:"predicate,omitempty"`
	Object      string  `json:"object,omitempty"`
	Confidence  float64 `json:"confidence"`

	// temporal and sensitivity hints
	IsHistorical  bool       `json:"is_historical,omitempty"`
	EffectiveFrom *time.Time `json:"-"`
	ExpiresAt     *time.Time `json:"-"`
	Recurrence    string     `json:"recurrence,omitempty"`
	Sensitivity   string     `json:"sensitivity,omitempty"`

	// Forget is set when the observation is an instruction to stop
	// remembering something rather than new information.
	Forget bool `json:"forget,omitempty"`

	// raw date strings as the collaborator returned them; resolved by the
	// service before the candidate leaves this package
	EffectiveFromRaw string `json:"effective_from,omitempty"`
	ExpiresAtRaw     string `json:"expires_at,omitempty"`
}
