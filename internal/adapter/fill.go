package adapter

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/spigell/autofill/internal/form"

	"go.uber.org/zap"
)

var errNoMatchingChoice = errors.New("answer matches none of the choices")

func (a *siteAdapter) FillAnswer(ctx context.Context, block *form.Block, answer form.Answer) bool {
	if err := a.own(block); err != nil {
		a.logger.Warn("refusing to fill block", zap.Error(err))
		return false
	}
	primary, ok := block.Primary()
	if !ok {
		return false
	}

	var err error
	switch {
	case primary.Tag == "select":
		err = a.fillSelect(ctx, primary, answer)
	case primary.Type == "radio":
		err = a.fillRadio(ctx, block, answer)
	case primary.Type == "checkbox":
		err = a.fillCheckboxes(ctx, block, answer)
	case primary.Type == "file":
		a.logger.Debug("file controls are not fillable", zap.String("selector", primary.Selector))
		return false
	default:
		err = a.page.SetValue(ctx, primary.Selector, answer.String())
	}

	if err != nil {
		a.logger.Debug("fill failed",
			zap.Int("block", block.Index),
			zap.String("selector", primary.Selector),
			zap.Error(err),
		)
		return false
	}
	return true
}

func (a *siteAdapter) fillSelect(ctx context.Context, control form.Control, answer form.Answer) error {
	values := answer.Choices
	if answer.Kind != form.AnswerChoice {
		values = []string{answer.String()}
	}
	for _, v := range values {
		if err := a.page.SelectOption(ctx, control.Selector, v); err != nil {
			return err
		}
	}
	return nil
}

func (a *siteAdapter) fillRadio(ctx context.Context, block *form.Block, answer form.Answer) error {
	target, ok := matchControl(block.Controls, answer)
	if !ok {
		return errNoMatchingChoice
	}
	return a.page.SetChecked(ctx, target.Selector, true)
}

func (a *siteAdapter) fillCheckboxes(ctx context.Context, block *form.Block, answer form.Answer) error {
	if len(block.Controls) == 1 {
		checked := answer.Bool
		if answer.Kind != form.AnswerBool {
			checked = !answer.IsEmpty() && !isNegative(answer.String())
		}
		return a.page.SetChecked(ctx, block.Controls[0].Selector, checked)
	}

	chosen := chosenValues(block.Controls, answer)
	if len(chosen) == 0 {
		return errNoMatchingChoice
	}
	for _, c := range block.Controls {
		if err := a.page.SetChecked(ctx, c.Selector, slices.Contains(chosen, c.Value)); err != nil {
			return err
		}
	}
	return nil
}

func (a *siteAdapter) Verify(ctx context.Context, block *form.Block, expected form.Answer) bool {
	if a.own(block) != nil {
		return false
	}
	primary, ok := block.Primary()
	if !ok {
		return false
	}

	switch {
	case primary.Tag == "select":
		selected, err := a.page.Selected(ctx, primary.Selector)
		if err != nil || len(selected) == 0 {
			return false
		}
		want := expected.Choices
		if expected.Kind != form.AnswerChoice {
			want = []string{expected.String()}
		}
		if len(want) == 0 {
			return false
		}
		// every requested option must be selected, a partial multi-select write fails
		for _, w := range want {
			if !slices.Contains(selected, w) {
				return false
			}
		}
		return true
	case primary.Type == "radio":
		target, ok := matchControl(block.Controls, expected)
		if !ok {
			return false
		}
		checked, err := a.page.Checked(ctx, target.Selector)
		return err == nil && checked
	case primary.Type == "checkbox":
		if len(block.Controls) == 1 {
			want := expected.Bool
			if expected.Kind != form.AnswerBool {
				want = !expected.IsEmpty() && !isNegative(expected.String())
			}
			checked, err := a.page.Checked(ctx, primary.Selector)
			return err == nil && checked == want
		}
		chosen := chosenValues(block.Controls, expected)
		if len(chosen) == 0 {
			return false
		}
		for _, c := range block.Controls {
			if !slices.Contains(chosen, c.Value) {
				continue
			}
			if checked, err := a.page.Checked(ctx, c.Selector); err != nil || !checked {
				return false
			}
		}
		return true
	default:
		value, err := a.page.Value(ctx, primary.Selector)
		return err == nil && len(strings.TrimSpace(value)) > 0
	}
}

// matchControl finds the radio that corresponds to the answer, by value first and label second.
func matchControl(controls []form.Control, answer form.Answer) (form.Control, bool) {
	wanted := answer.Choices
	if answer.Kind != form.AnswerChoice {
		wanted = []string{answer.String()}
	}
	for _, w := range wanted {
		for _, c := range controls {
			if c.Value == w {
				return c, true
			}
		}
		for _, c := range controls {
			if strings.EqualFold(c.Label, w) {
				return c, true
			}
		}
	}
	return form.Control{}, false
}

func chosenValues(controls []form.Control, answer form.Answer) []string {
	wanted := answer.Choices
	if answer.Kind != form.AnswerChoice {
		wanted = strings.Split(answer.String(), ",")
	}
	var chosen []string
	for _, w := range wanted {
		w = strings.TrimSpace(w)
		for _, c := range controls {
			if c.Value == w || strings.EqualFold(c.Label, w) {
				chosen = append(chosen, c.Value)
				break
			}
		}
	}
	return chosen
}

func isNegative(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "no", "false", "0", "off", "n":
		return true
	}
	return false
}
