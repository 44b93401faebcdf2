package adapter

import (
	"context"
	"regexp"
	"strconv"

	"github.com/spigell/autofill/internal/form"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

var (
	stepTextRe   = regexp.MustCompile(`(?i)\bstep\s+(\d+)\s*(?:of|/)\s*(\d+)\b`)
	nextButtonRe = regexp.MustCompile(`(?i)^\s*(next|continue|save\s*(and|&)\s*continue|proceed|next\s+step)\b`)
)

const buttonSelector = "button, input[type='submit'], input[type='button'], a[role='button']"

func (a *siteAdapter) StepInfo(ctx context.Context) form.StepInfo {
	doc, err := a.page.Snapshot(ctx)
	if err != nil {
		return form.StepInfo{Current: 1, Total: 1}
	}

	if a.site.Progress != "" {
		items := doc.Find(a.site.Progress)
		if total := items.Length(); total > 1 {
			current := 1
			items.EachWithBreak(func(i int, item *goquery.Selection) bool {
				if item.Is(a.site.ActiveStep) || item.Find(a.site.ActiveStep).Length() > 0 {
					current = i + 1
					return false
				}
				return true
			})
			return form.StepInfo{Current: current, Total: total, IsMultiStep: true}
		}
	}

	if bar := doc.Find("[role='progressbar'][aria-valuemax]").First(); bar.Length() > 0 {
		current, errNow := strconv.Atoi(bar.AttrOr("aria-valuenow", ""))
		total, errMax := strconv.Atoi(bar.AttrOr("aria-valuemax", ""))
		if errNow == nil && errMax == nil && total > 1 && current >= 1 && current <= total {
			return form.StepInfo{Current: current, Total: total, IsMultiStep: true}
		}
	}

	if m := stepTextRe.FindStringSubmatch(doc.Find("body").Text()); m != nil {
		current, _ := strconv.Atoi(m[1])
		total, _ := strconv.Atoi(m[2])
		if total > 1 && current >= 1 && current <= total {
			return form.StepInfo{Current: current, Total: total, IsMultiStep: true}
		}
	}

	return form.StepInfo{Current: 1, Total: 1}
}

func (a *siteAdapter) AdvanceStep(ctx context.Context) bool {
	doc, err := a.page.Snapshot(ctx)
	if err != nil {
		return false
	}

	selector := ""
	if a.site.Next != "" {
		if next := doc.Find(a.site.Next).First(); next.Length() > 0 && isVisible(next) {
			selector = uniqueSelector(doc, next)
		}
	}
	if selector == "" {
		doc.Find(buttonSelector).EachWithBreak(func(_ int, btn *goquery.Selection) bool {
			if _, disabled := btn.Attr("disabled"); disabled || !isVisible(btn) {
				return true
			}
			text := cleanText(btn.Text())
			if goquery.NodeName(btn) == "input" {
				text = btn.AttrOr("value", "")
			}
			if nextButtonRe.MatchString(text) {
				selector = uniqueSelector(doc, btn)
				return false
			}
			return true
		})
	}
	if selector == "" {
		a.logger.Debug("no next-step control found")
		return false
	}

	if err := a.page.Click(ctx, selector); err != nil {
		a.logger.Debug("advancing step failed", zap.String("selector", selector), zap.Error(err))
		return false
	}
	return true
}
