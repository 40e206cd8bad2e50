package sourceclient

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// ReportKind tags the two reply shapes of the collection entry point.
type ReportKind int

const (
	// ReportScalar is a single amount credited as-is.
	ReportScalar ReportKind = iota
	// ReportMetrics is a metric-name to amount mapping to be weighted.
	ReportMetrics
)

// Report is a source's reply to a collection query.
type Report struct {
	Kind    ReportKind
	Amount  uint64
	Metrics map[string]uint64
}

// DecodeReport decodes a reply body with a fixed fallback order: scalar
// amount first, then metric mapping. Anything else is a zero-value scalar
// report; a malformed reply never fails the batch.
func DecodeReport(data []byte) Report {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Report{Kind: ReportScalar}
	}

	if amount, ok := parseAmount(data); ok {
		return Report{Kind: ReportScalar, Amount: amount}
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err == nil {
		metrics := make(map[string]uint64, len(raw))
		for name, value := range raw {
			amount, ok := parseAmount(value)
			if !ok {
				return Report{Kind: ReportScalar}
			}
			metrics[name] = amount
		}
		return Report{Kind: ReportMetrics, Metrics: metrics}
	}

	return Report{Kind: ReportScalar}
}

// parseAmount accepts an amount either as a base-10 JSON string or as a
// plain non-negative JSON number.
func parseAmount(data json.RawMessage) (uint64, bool) {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		amount, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return 0, false
		}
		return amount, true
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		amount, err := strconv.ParseUint(n.String(), 10, 64)
		if err != nil {
			return 0, false
		}
		return amount, true
	}

	return 0, false
}
