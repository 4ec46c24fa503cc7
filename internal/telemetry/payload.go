package telemetry

// Payload is one recorded occurrence's data. The set of implementations is
// closed: each tracked event name has its own variant so malformed telemetry
// fails at compile time. Custom is the escape hatch for ad hoc events.
type Payload interface {
	EventName() string
	Fields() map[string]any
}

type PageLoad struct {
	Path      string
	Referrer  string
	UserAgent string
}

func (p PageLoad) EventName() string { return "page_load" }

func (p PageLoad) Fields() map[string]any {
	f := map[string]any{"path": p.Path}
	if p.Referrer != "" {
		f["referrer"] = p.Referrer
	}
	if p.UserAgent != "" {
		f["user_agent"] = p.UserAgent
	}
	return f
}

type ScrollDepth struct {
	Percent int
}

func (p ScrollDepth) EventName() string { return "scroll_depth" }

func (p ScrollDepth) Fields() map[string]any {
	return map[string]any{"percent": p.Percent}
}

type TimeOnPage struct {
	Seconds int
}

func (p TimeOnPage) EventName() string { return "time_on_page" }

func (p TimeOnPage) Fields() map[string]any {
	return map[string]any{"seconds": p.Seconds}
}

type PageExit struct {
	Seconds float64
}

func (p PageExit) EventName() string { return "page_exit" }

func (p PageExit) Fields() map[string]any {
	return map[string]any{"seconds": p.Seconds}
}

type FunnelStep struct {
	Step  string
	Value float64
	Meta  map[string]any
}

func (p FunnelStep) EventName() string { return "funnel_step" }

func (p FunnelStep) Fields() map[string]any {
	f := map[string]any{"step": p.Step}
	if p.Value != 0 {
		f["value"] = p.Value
	}
	for k, v := range p.Meta {
		f[k] = v
	}
	return f
}

type ABExposure struct {
	Test    string
	Variant string
}

func (p ABExposure) EventName() string { return "ab_test_exposure" }

func (p ABExposure) Fields() map[string]any {
	return map[string]any{"test": p.Test, "variant": p.Variant}
}

type ABConversion struct {
	Test    string
	Variant string
	Kind    string
	Value   float64
}

func (p ABConversion) EventName() string { return "ab_test_conversion" }

func (p ABConversion) Fields() map[string]any {
	f := map[string]any{"test": p.Test, "variant": p.Variant, "conversion_type": p.Kind}
	if p.Value != 0 {
		f["value"] = p.Value
	}
	return f
}

type CTAClick struct {
	Label string
	Page  string
}

func (p CTAClick) EventName() string { return "cta_click" }

func (p CTAClick) Fields() map[string]any {
	return map[string]any{"label": p.Label, "page": p.Page}
}

type Identified struct {
	Traits map[string]any
}

func (p Identified) EventName() string { return "identify" }

func (p Identified) Fields() map[string]any {
	f := make(map[string]any, len(p.Traits))
	for k, v := range p.Traits {
		f[k] = v
	}
	return f
}

// Custom carries an arbitrary event for callers outside the closed set.
type Custom struct {
	Name  string
	Props map[string]any
}

func (p Custom) EventName() string { return p.Name }

func (p Custom) Fields() map[string]any {
	f := make(map[string]any, len(p.Props))
	for k, v := range p.Props {
		f[k] = v
	}
	return f
}
