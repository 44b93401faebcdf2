// Package adapter bridges site-specific form markup and the canonical question model.
//
// Every supported site family is a Site variant: a table of selectors and a host
// predicate. All variants share one implementation of the Adapter capability set, so
// adding a site means adding a table entry rather than a new type.
package adapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/spigell/autofill/internal/form"
	"github.com/spigell/autofill/internal/page"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

var (
	// ErrNoAdapter means no site matched and the page does not look like an application form.
	ErrNoAdapter = errors.New("no adapter for page")
	// ErrForeignBlock is returned when a block handle from another adapter is passed in.
	ErrForeignBlock = errors.New("block belongs to another platform")
)

// Adapter is the per-site capability set used by the orchestrator.
// Expected failures such as a missing field are reported as false or empty results.
type Adapter interface {
	Name() string
	IsFormReady(ctx context.Context) bool
	FindQuestionBlocks(ctx context.Context) []*form.Block
	ExtractQuestion(ctx context.Context, block *form.Block) (*form.Question, error)
	FillAnswer(ctx context.Context, block *form.Block, answer form.Answer) bool
	Verify(ctx context.Context, block *form.Block, expected form.Answer) bool
	StepInfo(ctx context.Context) form.StepInfo
	AdvanceStep(ctx context.Context) bool
}

// siteAdapter implements Adapter for any Site variant bound to a page.
type siteAdapter struct {
	site   Site
	page   page.Page
	logger *zap.Logger
}

// Bind returns an adapter for site operating on p.
func Bind(site Site, p page.Page, logger *zap.Logger) Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &siteAdapter{
		site:   site,
		page:   p,
		logger: logger.With(zap.String("platform", string(site.Kind))),
	}
}

func (a *siteAdapter) Name() string { return string(a.site.Kind) }

func (a *siteAdapter) IsFormReady(ctx context.Context) bool {
	doc, err := a.page.Snapshot(ctx)
	if err != nil {
		a.logger.Debug("snapshot failed", zap.Error(err))
		return false
	}

	root := a.site.root(doc)
	found := false
	root.Find(controlSelector).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if isFillable(el) {
			found = true
			return false
		}
		return true
	})
	return found
}

func (a *siteAdapter) own(block *form.Block) error {
	if block == nil {
		return errors.New("nil block")
	}
	if block.Platform != a.Name() {
		return fmt.Errorf("%w: %s handed to %s", ErrForeignBlock, block.Platform, a.Name())
	}
	return nil
}
