package adapter

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/spigell/autofill/internal/page"
	"github.com/spigell/autofill/internal/utils"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// minJobFields is how many job-application field names a page needs to be treated as a form.
const minJobFields = 3

var (
	jobFieldRe = regexp.MustCompile(`(?i)(first.?name|last.?name|full.?name|e.?mail|phone|resume|cv\b|cover.?letter|linkedin|portfolio|salary|sponsorship|authori[sz]|relocat|start.?date|notice)`)
	jobTitleRe = regexp.MustCompile(`(?i)\b(apply|application|career|careers|job|jobs|position|vacanc(y|ies)|candidate)\b`)
	resumeRe   = regexp.MustCompile(`(?i)(resume|cv\b|curriculum)`)
)

// Registry selects the adapter for a page: site variants in order, then the generic one.
type Registry struct {
	sites   []Site
	generic Site
	backoff utils.Backoff
	logger  *zap.Logger
}

// NewRegistry returns a registry with the built-in site variants.
func NewRegistry(logger *zap.Logger, backoff utils.Backoff) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		sites:   Sites,
		generic: GenericSite,
		backoff: backoff,
		logger:  logger,
	}
}

// Sites returns the variants tried before the generic fallback.
func (r *Registry) Sites() []Site {
	return append([]Site(nil), r.sites...)
}

// Select binds the first matching site to p. It waits, with backoff, for client-rendered
// pages to show enough markup; ErrNoAdapter is returned when nothing matched in time.
func (r *Registry) Select(ctx context.Context, p page.Page) (Adapter, error) {
	var selected Adapter
	var lastErr error

	err := utils.Poll(ctx, r.backoff, func(ctx context.Context) bool {
		doc, err := p.Snapshot(ctx)
		if err != nil {
			lastErr = err
			return false
		}
		title, _ := p.Title(ctx)
		if site, ok := r.match(p.URL(), title, doc); ok {
			selected = Bind(site, p, r.logger)
			return true
		}
		return false
	})

	if selected != nil {
		r.logger.Info("adapter selected", zap.String("platform", selected.Name()), zap.String("url", p.URL()))
		return selected, nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoAdapter, lastErr)
	}
	return nil, fmt.Errorf("%w: %s", ErrNoAdapter, p.URL())
}

func (r *Registry) match(rawURL, title string, doc *goquery.Document) (Site, bool) {
	for _, site := range r.sites {
		if site.Matches(rawURL, doc) {
			return site, true
		}
	}
	if LooksLikeApplication(doc, title) {
		return r.generic, true
	}
	return Site{}, false
}

// LooksLikeApplication is the heuristic used for unknown sites: a resume upload control,
// at least three job-application field names, or a job-related title with a form on the page.
func LooksLikeApplication(doc *goquery.Document, title string) bool {
	if doc == nil {
		return false
	}

	resumeUpload := false
	doc.Find("input[type='file']").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		hint := strings.Join([]string{
			el.AttrOr("name", ""), el.AttrOr("id", ""), el.AttrOr("accept", ""), el.AttrOr("aria-label", ""),
			rawText(el.Closest("label, .field, .form-group")),
		}, " ")
		if resumeRe.MatchString(hint) {
			resumeUpload = true
			return false
		}
		return true
	})
	if resumeUpload {
		return true
	}

	matched := make(map[string]bool)
	doc.Find(controlSelector).Each(func(_ int, el *goquery.Selection) {
		if !isFillable(el) {
			return
		}
		hint := strings.Join([]string{el.AttrOr("name", ""), el.AttrOr("id", ""), el.AttrOr("autocomplete", ""), el.AttrOr("placeholder", "")}, " ")
		if m := jobFieldRe.FindString(hint); m != "" {
			matched[strings.ToLower(m)] = true
		}
	})
	if len(matched) >= minJobFields {
		return true
	}

	if doc.Find("form").Length() == 0 {
		return false
	}
	heading := cleanText(doc.Find("h1").First().Text())
	return jobTitleRe.MatchString(title) || jobTitleRe.MatchString(heading)
}
