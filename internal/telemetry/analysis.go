package telemetry

import "reflect"

// Filter selects events by exact match on top-level fields and partial match
// on props. Nil or zero fields match everything.
type Filter struct {
	Name      string
	SessionID string
	UserID    string
	Props     map[string]any
}

func (f *Filter) matches(evt Event) bool {
	if f == nil {
		return true
	}
	if f.Name != "" && evt.Name != f.Name {
		return false
	}
	if f.SessionID != "" && evt.SessionID != f.SessionID {
		return false
	}
	if f.UserID != "" && evt.UserID != f.UserID {
		return false
	}
	for k, want := range f.Props {
		got, ok := evt.Props[k]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

// Events returns a snapshot of recorded events matching the filter, in
// insertion order.
func (r *Recorder) Events(f *Filter) []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Event, 0, len(r.events))
	for _, evt := range r.events {
		if f.matches(evt) {
			out = append(out, evt)
		}
	}
	return out
}

type FunnelStage struct {
	Step    string  `json:"step"`
	Count   int     `json:"count"`
	DropOff float64 `json:"drop_off"`
}

// FunnelData counts funnel_step events per step and computes each step's
// drop-off rate relative to the previous step. Steps are tallied by name, not
// linked per session, so the rates are an approximation.
func (r *Recorder) FunnelData(steps []string) []FunnelStage {
	counts := make(map[string]int, len(steps))
	r.mu.RLock()
	for _, evt := range r.events {
		if evt.Name != "funnel_step" {
			continue
		}
		if step, ok := evt.Props["step"].(string); ok {
			counts[step]++
		}
	}
	r.mu.RUnlock()

	out := make([]FunnelStage, len(steps))
	for i, step := range steps {
		st := FunnelStage{Step: step, Count: counts[step]}
		if i > 0 {
			prev := out[i-1].Count
			if prev > 0 {
				st.DropOff = float64(prev-st.Count) / float64(prev)
			}
		}
		out[i] = st
	}
	return out
}

type VariantResult struct {
	Exposures   int     `json:"exposures"`
	Conversions int     `json:"conversions"`
	Rate        float64 `json:"conversion_rate"`
}

// ABTestResults groups exposure and conversion events for one test by variant.
// A variant with zero exposures reports a zero rate.
func (r *Recorder) ABTestResults(test string) map[string]VariantResult {
	out := make(map[string]VariantResult)
	r.mu.RLock()
	for _, evt := range r.events {
		if evt.Name != "ab_test_exposure" && evt.Name != "ab_test_conversion" {
			continue
		}
		if t, _ := evt.Props["test"].(string); t != test {
			continue
		}
		variant, ok := evt.Props["variant"].(string)
		if !ok {
			continue
		}
		res := out[variant]
		if evt.Name == "ab_test_exposure" {
			res.Exposures++
		} else {
			res.Conversions++
		}
		out[variant] = res
	}
	r.mu.RUnlock()

	for variant, res := range out {
		if res.Exposures > 0 {
			res.Rate = float64(res.Conversions) / float64(res.Exposures)
		}
		out[variant] = res
	}
	return out
}
