package adapter

import (
	"context"
	"strings"

	"github.com/spigell/autofill/internal/form"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// genericContainers are tried, innermost first, to find the wrapper of a lone control.
const genericContainers = ".field, .form-group, .form-field, .question, fieldset, li, p, div"

func (a *siteAdapter) FindQuestionBlocks(ctx context.Context) []*form.Block {
	doc, err := a.page.Snapshot(ctx)
	if err != nil {
		a.logger.Debug("snapshot failed", zap.Error(err))
		return nil
	}

	root := a.site.root(doc)
	seen := make(map[string]bool)
	var blocks []*form.Block

	add := func(container *goquery.Selection, controls *goquery.Selection) {
		for _, group := range groupControls(doc, controls, seen) {
			blocks = append(blocks, &form.Block{
				Index:    len(blocks),
				Platform: a.Name(),
				Selector: uniqueSelector(doc, container),
				Controls: group,
			})
		}
	}

	if a.site.Blocks != "" {
		root.Find(a.site.Blocks).Each(func(_ int, container *goquery.Selection) {
			// nested containers: the innermost one owns the controls
			if container.Find(a.site.Blocks).Length() > 0 {
				return
			}
			add(container, container.Find(controlSelector))
		})
	}

	// controls outside any known container still count, wrapped in their closest parent
	root.Find(controlSelector).Each(func(_ int, el *goquery.Selection) {
		if !isFillable(el) {
			return
		}
		if seen[uniqueSelector(doc, el)] {
			return
		}
		container := el.Closest(genericContainers)
		if container.Length() == 0 {
			container = el.Parent()
		}
		add(container, el)
	})

	a.logger.Debug("found question blocks", zap.Int("count", len(blocks)))
	return blocks
}

// groupControls splits the fillable controls into question groups: radios and
// checkboxes sharing a name form one group, every other control stands alone.
func groupControls(doc *goquery.Document, controls *goquery.Selection, seen map[string]bool) [][]form.Control {
	var groups [][]form.Control
	byName := make(map[string]int)

	controls.Each(func(_ int, el *goquery.Selection) {
		if !isFillable(el) {
			return
		}
		selector := uniqueSelector(doc, el)
		if seen[selector] {
			return
		}
		seen[selector] = true

		ctrl := form.Control{
			Selector: selector,
			Tag:      goquery.NodeName(el),
			Type:     strings.ToLower(el.AttrOr("type", "")),
		}
		if ctrl.Tag == "input" && ctrl.Type == "" {
			ctrl.Type = "text"
		}

		if ctrl.Type == "radio" || ctrl.Type == "checkbox" {
			ctrl.Value = el.AttrOr("value", "on")
			ctrl.Label = choiceLabel(doc, el)

			if name := el.AttrOr("name", ""); name != "" {
				key := ctrl.Type + ":" + name
				if idx, ok := byName[key]; ok {
					groups[idx] = append(groups[idx], ctrl)
					return
				}
				byName[key] = len(groups)
			}
		}

		groups = append(groups, []form.Control{ctrl})
	})

	return groups
}
