package domain

import "encoding/json"

// Signal is a tagged optional value for an asynchronously updated input.
// Providers report fields as present-with-value or absent-with-reason, and
// every consumer has to handle absence explicitly instead of reading a
// zero that looks like a real score.
type Signal struct {
	value   float64
	present bool
	reason  string
}

// Present wraps an available signal value.
func Present(v float64) Signal { return Signal{value: v, present: true} }

// Missing marks a signal as unavailable with a machine-readable reason
// ("provider_down", "stale", "not_fetched", ...).
func Missing(reason string) Signal { return Signal{reason: reason} }

// Value returns the signal value and whether it is present.
func (s Signal) Value() (float64, bool) { return s.value, s.present }

// ValueOr returns the value when present, otherwise the fallback.
func (s Signal) ValueOr(fallback float64) float64 {
	if s.present {
		return s.value
	}
	return fallback
}

// Available reports whether the signal carries a value.
func (s Signal) Available() bool { return s.present }

// Reason returns the absence reason, empty when present.
func (s Signal) Reason() string {
	if s.present {
		return ""
	}
	return s.reason
}

type signalJSON struct {
	Value   *float64 `json:"value,omitempty"`
	Absent  string   `json:"absent,omitempty"`
	Present bool     `json:"present"`
}

func (s Signal) MarshalJSON() ([]byte, error) {
	out := signalJSON{Present: s.present}
	if s.present {
		v := s.value
		out.Value = &v
	} else {
		out.Absent = s.reason
	}
	return json.Marshal(out)
}

func (s *Signal) UnmarshalJSON(data []byte) error {
	var in signalJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if in.Present && in.Value != nil {
		*s = Present(*in.Value)
	} else {
		*s = Missing(in.Absent)
	}
	return nil
}
