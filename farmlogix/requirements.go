package farmlogix

import (
	"encoding/json"
	"fmt"
)

// RequirementKind discriminates the ways a single requirement can be
// satisfied. The catalog config form is dynamic (`number | true | [strings]`)
// and is decoded into this union once at load so evaluation branches are
// exhaustive.
type RequirementKind uint8

const (
	RequirementKindUnknown RequirementKind = iota
	// RequirementKindThreshold is satisfied when the signal counter reaches the value.
	RequirementKindThreshold
	// RequirementKindFlag is satisfied when the boolean signal is set.
	RequirementKindFlag
	// RequirementKindAllOf is satisfied when every named member is present in
	// the set-valued signal. All-of, not count-based.
	RequirementKindAllOf
)

// Requirement is one entry of a definition's requirement set, keyed by signal
// name in the enclosing map.
type Requirement struct {
	Kind      RequirementKind
	Threshold int64
	Members   []string
}

// UnmarshalJSON decodes the catalog config threshold forms:
// a JSON number, the literal true, or a list of member strings.
func (r *Requirement) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case float64:
		if v != float64(int64(v)) || v <= 0 {
			return fmt.Errorf("requirement threshold must be a positive integer, got %v", v)
		}
		r.Kind = RequirementKindThreshold
		r.Threshold = int64(v)
	case bool:
		if !v {
			return fmt.Errorf("requirement flag threshold must be true")
		}
		r.Kind = RequirementKindFlag
	case []interface{}:
		if len(v) == 0 {
			return fmt.Errorf("requirement member list must not be empty")
		}
		members := make([]string, 0, len(v))
		for _, m := range v {
			s, ok := m.(string)
			if !ok {
				return fmt.Errorf("requirement member list must contain only strings, got %T", m)
			}
			members = append(members, s)
		}
		r.Kind = RequirementKindAllOf
		r.Members = members
	default:
		return fmt.Errorf("unsupported requirement threshold type %T", raw)
	}
	return nil
}

// MarshalJSON emits the same config form the requirement was decoded from.
func (r Requirement) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case RequirementKindThreshold:
		return json.Marshal(r.Threshold)
	case RequirementKindFlag:
		return json.Marshal(true)
	case RequirementKindAllOf:
		return json.Marshal(r.Members)
	default:
		return nil, fmt.Errorf("cannot marshal requirement of unknown kind")
	}
}

// RequirementSet maps signal names to the requirement on that signal. A
// definition is satisfied when every entry is satisfied.
type RequirementSet map[string]*Requirement

// RequirementDetail reports per-requirement evaluation state.
type RequirementDetail struct {
	Current   int64    `json:"current"`
	Required  int64    `json:"required"`
	Percent   float64  `json:"percent"`
	Missing   []string `json:"missing,omitempty"`
	Satisfied bool     `json:"satisfied"`
}

// EvaluationResult is the outcome of evaluating a requirement set against a
// progress snapshot.
type EvaluationResult struct {
	Satisfied bool                          `json:"satisfied"`
	Detail    map[string]*RequirementDetail `json:"detail"`
}

// Evaluate checks every requirement against the snapshot. Missing signals
// read as zero; evaluation never fails. The whole-set result short-circuits on
// the first unsatisfied entry but detail is still produced for every entry so
// callers can render progress.
func Evaluate(requirements RequirementSet, snapshot *ProgressSnapshot) *EvaluationResult {
	result := &EvaluationResult{
		Satisfied: true,
		Detail:    make(map[string]*RequirementDetail, len(requirements)),
	}

	for signal, req := range requirements {
		detail := evaluateOne(req, signal, snapshot)
		result.Detail[signal] = detail
		if !detail.Satisfied {
			result.Satisfied = false
		}
	}

	return result
}

// Satisfied reports whether the requirement set is met, stopping at the first
// failing entry. Requirements are pure reads so order cannot affect the result.
func Satisfied(requirements RequirementSet, snapshot *ProgressSnapshot) bool {
	for signal, req := range requirements {
		if !evaluateOne(req, signal, snapshot).Satisfied {
			return false
		}
	}
	return true
}

func evaluateOne(req *Requirement, signal string, snapshot *ProgressSnapshot) *RequirementDetail {
	switch req.Kind {
	case RequirementKindThreshold:
		current := snapshot.Counter(signal)
		percent := float64(current) / float64(req.Threshold) * 100
		if percent > 100 {
			percent = 100
		}
		return &RequirementDetail{
			Current:   current,
			Required:  req.Threshold,
			Percent:   percent,
			Satisfied: current >= req.Threshold,
		}

	case RequirementKindFlag:
		set := snapshot.Flag(signal)
		detail := &RequirementDetail{Required: 1, Satisfied: set}
		if set {
			detail.Current = 1
			detail.Percent = 100
		}
		return detail

	case RequirementKindAllOf:
		var missing []string
		for _, member := range req.Members {
			if !snapshot.SetContains(signal, member) {
				missing = append(missing, member)
			}
		}
		required := int64(len(req.Members))
		current := required - int64(len(missing))
		return &RequirementDetail{
			Current:   current,
			Required:  required,
			Percent:   float64(current) / float64(required) * 100,
			Missing:   missing,
			Satisfied: len(missing) == 0,
		}

	default:
		// Unknown kinds never satisfy; the catalog rejects them at load.
		return &RequirementDetail{Satisfied: false}
	}
}
