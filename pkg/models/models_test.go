package models

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestSelectorCSS(t *testing.T) {
	tests := []struct {
		name     string
		selector Selector
		want     string
	}{
		{
			name:     "id with dots",
			selector: Selector{By: ByID, Value: "reservationFlightSearchForm.originAirport"},
			want:     `[id="reservationFlightSearchForm.originAirport"]`,
		},
		{
			name:     "name",
			selector: Selector{By: ByName, Value: "departDate"},
			want:     `[name="departDate"]`,
		},
		{
			name:     "tag",
			selector: Selector{By: ByTag, Value: "body"},
			want:     "body",
		},
		{
			name:     "css passthrough",
			selector: Selector{By: ByCSS, Value: "#results > li"},
			want:     "#results > li",
		},
		{
			name:     "quotes escaped",
			selector: Selector{By: ByName, Value: `a"b`},
			want:     `[name="a\"b"]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.selector.CSS(); got != tt.want {
				t.Errorf("CSS() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSearchParamsMerge(t *testing.T) {
	base := DefaultSearchParams()
	got := base.Merge(SearchParams{Destination: "HND", Cabin: "first"})

	if got.Origin != "DFW" || got.URL != base.URL || got.Date != base.Date {
		t.Errorf("Merge() changed fields that were not overridden: %+v", got)
	}
	if got.Destination != "HND" || got.Cabin != "first" {
		t.Errorf("Merge() did not apply overrides: %+v", got)
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"entry error", NewEntryError(ErrCodeFieldNotFound, "origin", nil), ErrCodeFieldNotFound},
		{"wrapped entry error", fmt.Errorf("autofill: %w", NewEntryError(ErrCodePageNotLoaded, "body", nil)), ErrCodePageNotLoaded},
		{"canceled", fmt.Errorf("wait: %w", context.Canceled), ErrCodeCanceled},
		{"plain", errors.New("boom"), ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorCode(tt.err); got != tt.want {
				t.Errorf("ErrorCode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEntryErrorUnwrap(t *testing.T) {
	cause := errors.New("no such node")
	err := NewEntryError(ErrCodeFieldNotFound, "origin not found", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
	if got := err.Error(); got != "FIELD_NOT_FOUND: origin not found: no such node" {
		t.Errorf("Error() = %q", got)
	}
}

func TestPhaseResultComplete(t *testing.T) {
	start := time.Now().Add(-50 * time.Millisecond)

	ok := NewPhaseResult(PhaseAutofill, start).Complete(nil)
	if ok.Status != StatusSuccess || ok.ErrorCode != "" {
		t.Errorf("Complete(nil) = %+v", ok)
	}
	if ok.Duration < 50 {
		t.Errorf("Duration = %d, want >= 50", ok.Duration)
	}

	failed := NewPhaseResult(PhaseWait, start).Complete(NewEntryError(ErrCodePageNotLoaded, "body never appeared", nil))
	if failed.Status != StatusFailed || failed.ErrorCode != ErrCodePageNotLoaded {
		t.Errorf("Complete(err) = %+v", failed)
	}

	canceled := NewPhaseResult(PhaseWait, start).Complete(context.Canceled)
	if canceled.Status != StatusCanceled {
		t.Errorf("Complete(canceled).Status = %s, want canceled", canceled.Status)
	}
}

func TestRunResultFinalize(t *testing.T) {
	tests := []struct {
		name   string
		phases []PhaseResult
		want   RunStatus
	}{
		{
			name: "all success",
			phases: []PhaseResult{
				{Phase: PhaseBootstrap, Status: StatusSuccess},
				{Phase: PhaseAutofill, Status: StatusSuccess},
				{Phase: PhaseWait, Status: StatusSuccess},
				{Phase: PhaseCapture, Status: StatusSuccess},
			},
			want: StatusSuccess,
		},
		{
			name: "autofill failed",
			phases: []PhaseResult{
				{Phase: PhaseBootstrap, Status: StatusSuccess},
				{Phase: PhaseAutofill, Status: StatusFailed, ErrorMessage: "origin"},
				{Phase: PhaseWait, Status: StatusSuccess},
				{Phase: PhaseCapture, Status: StatusSuccess},
			},
			want: StatusFailed,
		},
		{
			name: "canceled wins",
			phases: []PhaseResult{
				{Phase: PhaseAutofill, Status: StatusFailed},
				{Phase: PhaseWait, Status: StatusCanceled},
				{Phase: PhaseCapture, Status: StatusSkipped},
			},
			want: StatusCanceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := RunResult{Phases: tt.phases}
			r.Finalize()
			if r.Status != tt.want {
				t.Errorf("Finalize() status = %s, want %s", r.Status, tt.want)
			}
			if tt.want == StatusSuccess && r.ErrorMessage != "" {
				t.Errorf("unexpected error message %q", r.ErrorMessage)
			}
		})
	}
}

func TestRunResultFind(t *testing.T) {
	r := RunResult{Phases: []PhaseResult{{Phase: PhaseWait, Status: StatusSuccess}}}

	if _, ok := r.Find(PhaseWait); !ok {
		t.Error("Find(wait) should succeed")
	}
	if _, ok := r.Find(PhaseCapture); ok {
		t.Error("Find(capture) should fail")
	}
}
