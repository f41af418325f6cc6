package entry

import (
	"context"
	"errors"
	"time"

	"go.temporal.io/sdk/log"

	"dev/bravebird/airline-entry/pkg/browser"
	"dev/bravebird/airline-entry/pkg/models"
)

// FormFiller types the search parameters into the booking form. It never
// submits the form.
type FormFiller struct {
	Form   models.FormSelectors
	Timing models.Timing
	Logger log.Logger
}

// NewFormFiller creates a form filler
func NewFormFiller(form models.FormSelectors, timing models.Timing, logger log.Logger) *FormFiller {
	return &FormFiller{
		Form:   form,
		Timing: timing,
		Logger: logger,
	}
}

type formField struct {
	name     string
	selector models.Selector
	value    string
	timeout  time.Duration
}

// Fill populates origin, destination and date, then tries the cabin. The
// first required field that fails ends the phase; the cabin never does.
func (f *FormFiller) Fill(ctx context.Context, page browser.Page, params models.SearchParams) models.PhaseResult {
	result := models.NewPhaseResult(models.PhaseAutofill, time.Now())

	required := []formField{
		{name: "origin", selector: f.Form.Origin, value: params.Origin, timeout: f.Timing.OriginTimeout},
		{name: "destination", selector: f.Form.Destination, value: params.Destination, timeout: f.Timing.FieldTimeout},
		{name: "date", selector: f.Form.Date, value: params.Date, timeout: f.Timing.FieldTimeout},
	}

	for i, field := range required {
		fr, err := f.fillField(ctx, page, field)
		result.Fields = append(result.Fields, fr)
		if err != nil {
			f.Logger.Error("Error autofilling form", "field", field.name, "error", err)
			for _, rest := range required[i+1:] {
				result.Fields = append(result.Fields, skippedField(rest.name, rest.selector, "autofill stopped at "+field.name))
			}
			result.Fields = append(result.Fields, skippedField("cabin", f.Form.Cabin, "autofill stopped at "+field.name))
			return result.Complete(err)
		}
		f.Logger.Debug("Field filled", "field", field.name, "value", field.value)
	}

	result.Fields = append(result.Fields, f.selectCabin(ctx, page, params.Cabin))

	f.Logger.Info("Autofill complete. Please review and click 'Search' yourself.")
	return result.Complete(nil)
}

func (f *FormFiller) fillField(ctx context.Context, page browser.Page, field formField) (models.FieldResult, error) {
	fr := models.FieldResult{
		Field:    field.name,
		Selector: field.selector.CSS(),
	}

	el, err := page.WaitElement(ctx, fr.Selector, field.timeout)
	if err != nil {
		fr.ErrorMessage = err.Error()
		if errors.Is(err, context.Canceled) {
			fr.Status = models.FieldFailed
			return fr, err
		}
		fr.Status = models.FieldMissing
		return fr, models.NewEntryError(models.ErrCodeFieldNotFound, field.name+" field not found", err)
	}

	if err := el.Clear(); err != nil {
		fr.Status = models.FieldFailed
		fr.ErrorMessage = err.Error()
		return fr, models.NewEntryError(models.ErrCodeFieldInput, "failed to clear "+field.name, err)
	}
	if err := el.Type(field.value); err != nil {
		fr.Status = models.FieldFailed
		fr.ErrorMessage = err.Error()
		return fr, models.NewEntryError(models.ErrCodeFieldInput, "failed to type "+field.name, err)
	}

	fr.Status = models.FieldFilled
	return fr, nil
}

// selectCabin is best effort: any failure is reported as a skipped field.
func (f *FormFiller) selectCabin(ctx context.Context, page browser.Page, cabin string) models.FieldResult {
	if cabin == "" {
		return skippedField("cabin", f.Form.Cabin, "no cabin requested")
	}

	el, err := page.WaitElement(ctx, f.Form.Cabin.CSS(), f.Timing.FieldTimeout)
	if err != nil {
		f.Logger.Warn("Cabin dropdown not found, skipping", "selector", f.Form.Cabin.String())
		return skippedField("cabin", f.Form.Cabin, err.Error())
	}
	if err := el.SelectOption(cabin); err != nil {
		f.Logger.Warn("Cabin option not selectable, skipping", "cabin", cabin, "error", err)
		return skippedField("cabin", f.Form.Cabin, err.Error())
	}

	return models.FieldResult{
		Field:    "cabin",
		Selector: f.Form.Cabin.CSS(),
		Status:   models.FieldFilled,
	}
}

func skippedField(name string, sel models.Selector, reason string) models.FieldResult {
	return models.FieldResult{
		Field:        name,
		Selector:     sel.CSS(),
		Status:       models.FieldSkipped,
		ErrorMessage: reason,
	}
}
