package adapter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spigell/autofill/internal/form"
	"github.com/spigell/autofill/internal/page"

	"github.com/PuerkitoBio/goquery"
)

// longTextMaxLength is the maxlength from which a single-line input is treated as long text.
const longTextMaxLength = 500

var errNoQuestionText = errors.New("question text not found")

func (a *siteAdapter) ExtractQuestion(ctx context.Context, block *form.Block) (*form.Question, error) {
	if err := a.own(block); err != nil {
		return nil, err
	}

	primary, ok := block.Primary()
	if !ok {
		return nil, fmt.Errorf("block %d has no controls", block.Index)
	}

	doc, err := a.page.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	el := doc.Find(primary.Selector).First()
	if el.Length() == 0 {
		return nil, fmt.Errorf("%s: %w", primary.Selector, page.ErrNotFound)
	}
	container := doc.Find(block.Selector).First()
	if container.Length() == 0 {
		container = el.Parent()
	}

	q := &form.Question{
		Platform: a.Name(),
		Block:    block,
	}
	q.Type, q.Options = inferType(el, block)

	raw := a.questionText(doc, el, container, block, q.Type)
	if raw == "" {
		return nil, fmt.Errorf("block %d: %w", block.Index, errNoQuestionText)
	}
	q.Raw = cleanText(raw)
	q.Normalized = form.Normalize(q.Raw)
	q.Required = a.isRequired(doc, container, block, raw)
	q.Format = inputFormat(el)

	if v, err := strconv.Atoi(el.AttrOr("maxlength", "")); err == nil && v > 0 {
		q.MaxLength = v
	}

	return q, nil
}

// inferType maps the concrete control onto a question type and collects choice options.
func inferType(el *goquery.Selection, block *form.Block) (form.QuestionType, []form.Option) {
	primary, _ := block.Primary()

	switch primary.Tag {
	case "select":
		var options []form.Option
		el.Find("option").Each(func(_ int, opt *goquery.Selection) {
			value, hasValue := opt.Attr("value")
			label := cleanText(opt.Text())
			if !hasValue {
				value = label
			}
			// placeholder entries such as "Select..." carry no value
			if strings.TrimSpace(value) == "" {
				return
			}
			options = append(options, form.Option{Value: value, Label: label})
		})
		if _, multiple := el.Attr("multiple"); multiple {
			return form.MultiChoice, options
		}
		return form.SingleChoice, options
	case "textarea":
		return form.LongText, nil
	}

	switch primary.Type {
	case "radio":
		return form.SingleChoice, controlOptions(block)
	case "checkbox":
		if len(block.Controls) > 1 {
			return form.MultiChoice, controlOptions(block)
		}
		return form.Boolean, nil
	case "file":
		return form.File, nil
	}

	if v, err := strconv.Atoi(el.AttrOr("maxlength", "")); err == nil && v >= longTextMaxLength {
		return form.LongText, nil
	}
	return form.ShortText, nil
}

func controlOptions(block *form.Block) []form.Option {
	options := make([]form.Option, 0, len(block.Controls))
	for _, c := range block.Controls {
		options = append(options, form.Option{Value: c.Value, Label: c.Label})
	}
	return options
}

func inputFormat(el *goquery.Selection) form.Format {
	if goquery.NodeName(el) != "input" {
		return form.FormatNone
	}
	switch strings.ToLower(el.AttrOr("type", "")) {
	case "email":
		return form.FormatEmail
	case "tel":
		return form.FormatPhone
	case "url":
		return form.FormatURL
	case "number":
		return form.FormatNumber
	case "date", "month":
		return form.FormatDate
	}
	switch strings.ToLower(el.AttrOr("inputmode", "")) {
	case "email":
		return form.FormatEmail
	case "tel":
		return form.FormatPhone
	case "url":
		return form.FormatURL
	case "numeric", "decimal":
		return form.FormatNumber
	}
	return form.FormatNone
}

// questionText resolves the visible question for a block. Groups prefer the container
// caption, single controls prefer their own label.
func (a *siteAdapter) questionText(doc *goquery.Document, el, container *goquery.Selection, block *form.Block, typ form.QuestionType) string {
	grouped := len(block.Controls) > 1 || (typ == form.SingleChoice && goquery.NodeName(el) == "input")

	var candidates []func() string
	containerLabel := func() string {
		if a.site.Label == "" {
			return ""
		}
		label := container.Find(a.site.Label).First()
		if label.Length() == 0 {
			return ""
		}
		return rawText(label)
	}
	legend := func() string {
		return rawText(el.Closest("fieldset").Find("legend").First())
	}
	groupLabel := func() string {
		group := el.Closest("[role='radiogroup'], [role='group']")
		if group.Length() == 0 {
			return ""
		}
		if text := strings.TrimSpace(group.AttrOr("aria-label", "")); text != "" {
			return text
		}
		return labelledBy(doc, group)
	}

	if grouped {
		candidates = append(candidates, legend, groupLabel, containerLabel)
	} else {
		candidates = append(candidates,
			func() string { return labelFor(doc, el) },
			func() string { return wrappingLabel(el) },
			func() string { return strings.TrimSpace(el.AttrOr("aria-label", "")) },
			func() string { return labelledBy(doc, el) },
			containerLabel,
			legend,
		)
	}
	candidates = append(candidates,
		func() string { return containerCaption(container, block) },
		func() string { return strings.TrimSpace(el.AttrOr("placeholder", "")) },
		func() string { return humanize(el.AttrOr("name", "")) },
	)

	for _, candidate := range candidates {
		if text := candidate(); cleanText(text) != "" {
			return text
		}
	}
	return ""
}

// rawText keeps the required asterisk so the caller can detect it before cleaning.
func rawText(sel *goquery.Selection) string {
	if sel == nil || sel.Length() == 0 {
		return ""
	}
	clone := sel.Clone()
	clone.Find("input, select, textarea, option, script, style").Remove()
	return spaceRe.ReplaceAllString(strings.TrimSpace(clone.Text()), " ")
}

func labelFor(doc *goquery.Document, el *goquery.Selection) string {
	id, ok := el.Attr("id")
	if !ok || id == "" {
		return ""
	}
	return rawText(doc.Find(fmt.Sprintf(`label[for="%s"]`, attrQuote(id))).First())
}

func wrappingLabel(el *goquery.Selection) string {
	return rawText(el.Closest("label"))
}

func labelledBy(doc *goquery.Document, el *goquery.Selection) string {
	ids := strings.Fields(el.AttrOr("aria-labelledby", ""))
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		if !simpleIDRe.MatchString(id) {
			continue
		}
		if text := rawText(doc.Find("#" + id).First()); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// containerCaption is the container text minus the option labels of its controls.
func containerCaption(container *goquery.Selection, block *form.Block) string {
	text := ownText(container)
	for _, c := range block.Controls {
		if c.Label != "" {
			text = strings.Replace(text, c.Label, "", 1)
		}
	}
	return strings.TrimSpace(text)
}

// choiceLabel resolves the display label of one radio or checkbox.
func choiceLabel(doc *goquery.Document, el *goquery.Selection) string {
	if text := cleanText(labelFor(doc, el)); text != "" {
		return text
	}
	if text := cleanText(wrappingLabel(el)); text != "" {
		return text
	}
	if text := strings.TrimSpace(el.AttrOr("aria-label", "")); text != "" {
		return text
	}
	if next := el.Next(); next.Length() > 0 && (goquery.NodeName(next) == "label" || goquery.NodeName(next) == "span") {
		if text := cleanText(next.Text()); text != "" {
			return text
		}
	}
	return el.AttrOr("value", "")
}

func humanize(name string) string {
	name = strings.NewReplacer("_", " ", "-", " ", "[", " ", "]", " ", ".", " ").Replace(name)
	return strings.TrimSpace(name)
}

func (a *siteAdapter) isRequired(doc *goquery.Document, container *goquery.Selection, block *form.Block, raw string) bool {
	if strings.Contains(raw, "*") {
		return true
	}
	if a.site.Required != "" && container.Find(a.site.Required).Length() > 0 {
		return true
	}
	for _, c := range block.Controls {
		el := doc.Find(c.Selector).First()
		if _, ok := el.Attr("required"); ok {
			return true
		}
		if strings.EqualFold(el.AttrOr("aria-required", ""), "true") {
			return true
		}
	}
	return false
}
