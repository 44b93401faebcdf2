package adapter

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Kind names a site family.
type Kind string

const (
	Greenhouse Kind = "greenhouse"
	Lever      Kind = "lever"
	Workday    Kind = "workday"
	Generic    Kind = "generic"
)

// Site is one tagged variant: how a site family lays out its application form.
// Empty selectors fall back to the generic heuristics.
type Site struct {
	Kind Kind
	// Hosts are host suffixes served by the site family.
	Hosts []string
	// Markers identify embedded forms on third-party hosts.
	Markers string
	// Root narrows the search to the application form.
	Root string
	// Blocks selects question containers inside Root.
	Blocks string
	// Label selects the question text inside a block.
	Label string
	// Required marks a block as mandatory.
	Required string
	// Progress selects one element per step of a multi-step flow.
	Progress string
	// ActiveStep selects the progress element of the current step.
	ActiveStep string
	// Next selects the control that advances to the next step.
	Next string
}

// Sites is the closed set of site-specific variants, tried in order before Generic.
var Sites = []Site{
	{
		Kind:     Greenhouse,
		Hosts:    []string{"greenhouse.io"},
		Markers:  "#application_form, #application-form, #grnhse_app",
		Root:     "#application_form, #application-form, #grnhse_app form, form#application",
		Blocks:   ".field, .application--question, .select__container",
		Label:    "label, legend, .application-label",
		Required: ".asterisk, abbr[title='required']",
	},
	{
		Kind:     Lever,
		Hosts:    []string{"lever.co"},
		Markers:  ".application-form, form#application-form[action*='lever']",
		Root:     ".application-form, form#application-form",
		Blocks:   ".application-question, .custom-question",
		Label:    ".application-label, .text",
		Required: ".required",
	},
	{
		Kind:       Workday,
		Hosts:      []string{"myworkdayjobs.com", "workday.com", "myworkdaysite.com"},
		Markers:    "[data-automation-id='applyFlowPage']",
		Root:       "[data-automation-id='applyFlowPage'], form",
		Blocks:     "[data-automation-id^='formField-']",
		Label:      "label, legend",
		Required:   "abbr[title='required']",
		Progress:   "[data-automation-id='progressBar'] li",
		ActiveStep: "[data-automation-id='progressBarActiveStep'], [aria-current='step']",
		Next:       "button[data-automation-id='bottom-navigation-next-button'], button[data-automation-id='pageFooterNextButton']",
	},
}

// GenericSite is the best-effort fallback for unrecognized forms.
var GenericSite = Site{
	Kind: Generic,
	Root: "form",
}

// Matches reports whether the site serves rawURL or the document carries its markers.
func (s Site) Matches(rawURL string, doc *goquery.Document) bool {
	if host := hostOf(rawURL); host != "" {
		for _, h := range s.Hosts {
			if host == h || strings.HasSuffix(host, "."+h) {
				return true
			}
		}
	}
	if s.Markers != "" && doc != nil {
		return doc.Find(s.Markers).Length() > 0
	}
	return false
}

// root returns the application form root, or the whole body when the root selector misses.
func (s Site) root(doc *goquery.Document) *goquery.Selection {
	if s.Root != "" {
		if root := doc.Find(s.Root).First(); root.Length() > 0 {
			return root
		}
	}
	if body := doc.Find("body"); body.Length() > 0 {
		return body
	}
	return doc.Selection
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Hostname())
}
