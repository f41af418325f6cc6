package models

import (
	"fmt"
	"strings"
	"time"
)

// ==================== Search Types ====================

// SearchParams holds the literal values typed into the booking form
type SearchParams struct {
	URL         string `json:"url" yaml:"url"`
	Origin      string `json:"origin" yaml:"origin"`
	Destination string `json:"destination" yaml:"destination"`
	Date        string `json:"date" yaml:"date"` // MM/DD/YYYY
	Cabin       string `json:"cabin" yaml:"cabin"`
}

// DefaultSearchParams returns the DFW -> NRT business search
func DefaultSearchParams() SearchParams {
	return SearchParams{
		URL:         "https://www.aa.com/booking/flights",
		Origin:      "DFW",
		Destination: "NRT",
		Date:        "05/15/2026",
		Cabin:       "business",
	}
}

// Merge returns p with every non-empty field of override applied
func (p SearchParams) Merge(override SearchParams) SearchParams {
	if override.URL != "" {
		p.URL = override.URL
	}
	if override.Origin != "" {
		p.Origin = override.Origin
	}
	if override.Destination != "" {
		p.Destination = override.Destination
	}
	if override.Date != "" {
		p.Date = override.Date
	}
	if override.Cabin != "" {
		p.Cabin = override.Cabin
	}
	return p
}

// ==================== Selector Types ====================

// SelectorKind tells how a Selector value locates an element
type SelectorKind string

const (
	ByID   SelectorKind = "id"
	ByName SelectorKind = "name"
	ByTag  SelectorKind = "tag"
	ByCSS  SelectorKind = "css"
)

// Selector locates a single page element
type Selector struct {
	By    SelectorKind `json:"by" yaml:"by"`
	Value string       `json:"value" yaml:"value"`
}

// CSS renders the selector for the browser driver. Ids go through an attribute
// selector since carrier ids contain dots.
func (s Selector) CSS() string {
	switch s.By {
	case ByID:
		return fmt.Sprintf(`[id="%s"]`, escapeAttr(s.Value))
	case ByName:
		return fmt.Sprintf(`[name="%s"]`, escapeAttr(s.Value))
	default:
		return s.Value
	}
}

func (s Selector) String() string {
	return string(s.By) + "=" + s.Value
}

func escapeAttr(v string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(v)
}

// FormSelectors are the four booking form fields
type FormSelectors struct {
	Origin      Selector `json:"origin" yaml:"origin"`
	Destination Selector `json:"destination" yaml:"destination"`
	Date        Selector `json:"date" yaml:"date"`
	Cabin       Selector `json:"cabin" yaml:"cabin"`
}

// DefaultFormSelectors returns the selectors of the aa.com search form
func DefaultFormSelectors() FormSelectors {
	return FormSelectors{
		Origin:      Selector{By: ByID, Value: "reservationFlightSearchForm.originAirport"},
		Destination: Selector{By: ByID, Value: "reservationFlightSearchForm.destinationAirport"},
		Date:        Selector{By: ByName, Value: "departDate"},
		Cabin:       Selector{By: ByID, Value: "flightSearchCabin"},
	}
}

// ==================== Run Options ====================

// Timing controls every wait of a run
type Timing struct {
	// OriginTimeout bounds the wait for the first form field
	OriginTimeout time.Duration `json:"origin_timeout" yaml:"origin_timeout"`
	// FieldTimeout bounds the lookup of the remaining fields; 0 means look once
	FieldTimeout   time.Duration `json:"field_timeout" yaml:"field_timeout"`
	ResultsTimeout time.Duration `json:"results_timeout" yaml:"results_timeout"`
	SettleDelay    time.Duration `json:"settle_delay" yaml:"settle_delay"`
}

// DefaultTiming returns 20s / immediate / 120s / 5s
func DefaultTiming() Timing {
	return Timing{
		OriginTimeout:  20 * time.Second,
		FieldTimeout:   0,
		ResultsTimeout: 120 * time.Second,
		SettleDelay:    5 * time.Second,
	}
}

// BrowserOptions configures the launched browser
type BrowserOptions struct {
	Bin       string `json:"bin" yaml:"bin"`
	Headless  bool   `json:"headless" yaml:"headless"`
	Maximized bool   `json:"maximized" yaml:"maximized"`
	NoSandbox bool   `json:"no_sandbox" yaml:"no_sandbox"`
}

// OutputOptions names the snapshot artifacts
type OutputOptions struct {
	Dir      string `json:"dir" yaml:"dir"`
	BaseName string `json:"base_name" yaml:"base_name"`
}

// DefaultOutputOptions returns aa_test_output/aa_dfw_nrt
func DefaultOutputOptions() OutputOptions {
	return OutputOptions{
		Dir:      "aa_test_output",
		BaseName: "aa_dfw_nrt",
	}
}

// ==================== Result Types ====================

// Phase names one step of a run
type Phase string

const (
	PhaseBootstrap Phase = "bootstrap"
	PhaseAutofill  Phase = "autofill"
	PhaseWait      Phase = "wait"
	PhaseCapture   Phase = "capture"
)

// Phases lists the phases in execution order
var Phases = []Phase{PhaseBootstrap, PhaseAutofill, PhaseWait, PhaseCapture}

// RunStatus represents the status of a run or a phase
type RunStatus string

const (
	StatusPending  RunStatus = "pending"
	StatusRunning  RunStatus = "running"
	StatusSuccess  RunStatus = "success"
	StatusFailed   RunStatus = "failed"
	StatusSkipped  RunStatus = "skipped"
	StatusCanceled RunStatus = "canceled"
)

// Terminal reports whether no further updates will follow
func (s RunStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusCanceled
}

// FieldStatus is the outcome of a single form field
type FieldStatus string

const (
	FieldFilled  FieldStatus = "filled"
	FieldSkipped FieldStatus = "skipped"
	FieldMissing FieldStatus = "missing"
	FieldFailed  FieldStatus = "failed"
)

// FieldResult records what happened to one form field
type FieldResult struct {
	Field        string      `json:"field"`
	Selector     string      `json:"selector"`
	Status       FieldStatus `json:"status"`
	ErrorMessage string      `json:"error_message,omitempty"`
}

// PhaseResult is the explicit outcome of one phase
type PhaseResult struct {
	Phase        Phase         `json:"phase"`
	Status       RunStatus     `json:"status"`
	ErrorCode    string        `json:"error_code,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Fields       []FieldResult `json:"fields,omitempty"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     int64         `json:"duration_ms"`
}

// Succeeded reports whether the phase completed successfully
func (r PhaseResult) Succeeded() bool {
	return r.Status == StatusSuccess
}

// Snapshot describes the captured artifacts
type Snapshot struct {
	ScreenshotPath  string    `json:"screenshot_path"`
	HTMLPath        string    `json:"html_path"`
	ScreenshotBytes int       `json:"screenshot_bytes"`
	HTMLBytes       int       `json:"html_bytes"`
	CapturedAt      time.Time `json:"captured_at"`
}

// RunResult represents the result of a whole run
type RunResult struct {
	RunID         string        `json:"run_id"`
	Status        RunStatus     `json:"status"`
	Phases        []PhaseResult `json:"phases"`
	Snapshot      *Snapshot     `json:"snapshot,omitempty"`
	TotalDuration int64         `json:"total_duration_ms"`
	ErrorMessage  string        `json:"error_message,omitempty"`
}

// Find returns the recorded result of phase p, if any
func (r RunResult) Find(p Phase) (PhaseResult, bool) {
	for _, pr := range r.Phases {
		if pr.Phase == p {
			return pr, true
		}
	}
	return PhaseResult{}, false
}

// Finalize derives Status and ErrorMessage from the phase results. A run
// succeeds only if every phase succeeded.
func (r *RunResult) Finalize() {
	r.Status = StatusSuccess
	r.ErrorMessage = ""
	for _, pr := range r.Phases {
		if pr.Status == StatusCanceled {
			r.Status = StatusCanceled
			r.ErrorMessage = string(pr.Phase) + ": " + pr.ErrorMessage
			return
		}
		if pr.Status != StatusSuccess && r.Status == StatusSuccess {
			r.Status = StatusFailed
			r.ErrorMessage = string(pr.Phase) + ": " + pr.ErrorMessage
		}
	}
}

// ==================== Workflow Types ====================

// EntryInput represents input for one entry workflow run
type EntryInput struct {
	RunID           string         `json:"run_id"`
	Params          SearchParams   `json:"params"`
	Form            FormSelectors  `json:"form"`
	Timing          Timing         `json:"timing"`
	ResultsSelector Selector       `json:"results_selector"`
	Browser         BrowserOptions `json:"browser"`
	Output          OutputOptions  `json:"output"`
}

// ==================== Run Records ====================

// Run is the persisted record of an entry run
type Run struct {
	ID                 string     `json:"id" db:"id"`
	TemporalWorkflowID string     `json:"temporal_workflow_id" db:"temporal_workflow_id"`
	TemporalRunID      string     `json:"temporal_run_id" db:"temporal_run_id"`
	Status             RunStatus  `json:"status" db:"status"`
	ParametersJSON     string     `json:"-" db:"parameters"`
	PhasesJSON         string     `json:"-" db:"phase_results"`
	ScreenshotPath     string     `json:"screenshot_path,omitempty" db:"screenshot_path"`
	HTMLPath           string     `json:"html_path,omitempty" db:"html_path"`
	ErrorMessage       string     `json:"error_message,omitempty" db:"error_message"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty" db:"completed_at"`

	// Computed fields
	Params *SearchParams `json:"params,omitempty"`
	Phases []PhaseResult `json:"phases,omitempty"`
}

// ==================== API Request/Response Types ====================

// StartRunRequest represents a request to start a run. Empty fields fall back
// to the server defaults.
type StartRunRequest struct {
	Params   SearchParams `json:"params"`
	Headless *bool        `json:"headless,omitempty"`
}

// StartRunResponse is returned once the workflow has been started
type StartRunResponse struct {
	RunID              string    `json:"run_id"`
	TemporalWorkflowID string    `json:"temporal_workflow_id"`
	TemporalRunID      string    `json:"temporal_run_id"`
	Status             RunStatus `json:"status"`
}

// ==================== WebSocket Message Types ====================

// WSMessage represents a WebSocket message for real-time updates
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// RunUpdate is the payload of a run_update message
type RunUpdate struct {
	RunID  string        `json:"run_id"`
	Status RunStatus     `json:"status"`
	Phases []PhaseResult `json:"phases"`
}
