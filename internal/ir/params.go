package ir

// Params carries the per-call options read by the cache getters, the
// service actions and the transports.
type Params struct {
	// Query is the MongoDB-style query document, including the reserved
	// $sort/$limit/$skip/$select keys.
	Query map[string]any `json:"query,omitempty"`

	// Temps includes temporary records in local finds.
	Temps bool `json:"temps,omitempty"`

	// Copies substitutes editable copies for their records in local finds.
	Copies bool `json:"copies,omitempty"`

	// Qid names the pagination bucket a remote find is recorded under.
	Qid string `json:"qid,omitempty"`

	// Data overrides the payload of a patch.
	Data Record `json:"data,omitempty"`

	// SkipRequestIfExists makes get return a cached record without a
	// remote call.
	SkipRequestIfExists bool `json:"skipRequestIfExists,omitempty"`

	// SortFunc, when set, orders local find results instead of $sort.
	SortFunc func(a, b Record) int `json:"-"`
}

// DefaultQid is the pagination bucket used when Params.Qid is empty.
const DefaultQid = "default"

// QidOrDefault returns p.Qid, or DefaultQid when it is empty.
func (p Params) QidOrDefault() string {
	if p.Qid == "" {
		return DefaultQid
	}
	return p.Qid
}

// WithQuery returns a copy of p using q as its query.
func (p Params) WithQuery(q map[string]any) Params {
	p.Query = q
	return p
}
