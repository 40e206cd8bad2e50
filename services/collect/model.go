package collect

import "drip-controlplane/pkg/sourceclient"

// CollectRequest carries the caller identity plus the two metered resources
// attached to the request: payment (Deposit) and execution budget.
type CollectRequest struct {
	Caller  string   `json:"caller"`
	Sources []string `json:"sources"`
	Deposit uint64   `json:"deposit"`
	Budget  uint64   `json:"budget"`
}

// SourceCall is one position of the fan-out association list: the source it
// was issued against together with its outcome. The reconciler walks these
// positionally, so the list is never split into parallel arrays.
type SourceCall struct {
	Source string
	Report sourceclient.Report
	Err    error
}

// CollectResult reports what each trusted source contributed. Failed lists
// sources whose call or payload could not be settled; their drips stay at
// the source.
type CollectResult struct {
	Credited map[string]uint64 `json:"credited"`
	Failed   []string          `json:"failed,omitempty"`
	Total    uint64            `json:"total"`
}
