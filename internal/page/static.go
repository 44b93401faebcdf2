package page

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// Event is a synthetic DOM event recorded by a Static page.
type Event struct {
	Selector string
	Type     string
}

// Static is an in-memory page backed by parsed HTML. Each document is one step of a
// multi-step form; clicking a button, submit input or link advances to the next one.
type Static struct {
	url   string
	title string

	mu     sync.Mutex
	docs   []*goquery.Document
	step   int
	events []Event
}

// NewStatic parses one HTML document per form step.
func NewStatic(url string, steps ...string) (*Static, error) {
	if len(steps) == 0 {
		return nil, &Error{URL: url, Message: "no documents provided"}
	}

	docs := make([]*goquery.Document, 0, len(steps))
	for i, html := range steps {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			return nil, &Error{URL: url, Message: fmt.Sprintf("parse step %d", i+1), Cause: err}
		}
		docs = append(docs, doc)
	}

	return &Static{
		url:   url,
		title: strings.TrimSpace(docs[0].Find("title").First().Text()),
		docs:  docs,
	}, nil
}

func (s *Static) URL() string { return s.url }

func (s *Static) Title(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if title := strings.TrimSpace(s.current().Find("title").First().Text()); title != "" {
		return title, nil
	}
	return s.title, nil
}

func (s *Static) Snapshot(ctx context.Context) (*goquery.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current(), nil
}

// Step returns the zero-based index of the document currently shown.
func (s *Static) Step() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// Events returns the synthetic events dispatched so far.
func (s *Static) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

// HTML renders the current document, including written values.
func (s *Static) HTML() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return goquery.OuterHtml(s.current().Selection)
}

func (s *Static) SetValue(ctx context.Context, selector, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	el, err := s.writable(selector)
	if err != nil {
		return err
	}

	switch goquery.NodeName(el) {
	case "textarea":
		el.SetText(value)
	case "input":
		switch strings.ToLower(el.AttrOr("type", "text")) {
		case "checkbox", "radio", "file", "submit", "button", "image", "reset":
			return fmt.Errorf("%s: %w", selector, ErrNotWritable)
		}
		el.SetAttr("value", value)
	case "select":
		if !selectOption(el, value) {
			return fmt.Errorf("%s option %q: %w", selector, value, ErrNotFound)
		}
	default:
		if _, ok := el.Attr("contenteditable"); !ok {
			return fmt.Errorf("%s: %w", selector, ErrNotWritable)
		}
		el.SetText(value)
	}

	s.dispatch(selector, "focus", "input", "change", "blur")
	return nil
}

func (s *Static) SelectOption(ctx context.Context, selector, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	el, err := s.writable(selector)
	if err != nil {
		return err
	}
	if goquery.NodeName(el) != "select" {
		return fmt.Errorf("%s is not a select: %w", selector, ErrNotWritable)
	}
	if !selectOption(el, value) {
		return fmt.Errorf("%s option %q: %w", selector, value, ErrNotFound)
	}

	s.dispatch(selector, "focus", "input", "change", "blur")
	return nil
}

func (s *Static) SetChecked(ctx context.Context, selector string, checked bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	el, err := s.writable(selector)
	if err != nil {
		return err
	}

	kind := strings.ToLower(el.AttrOr("type", ""))
	if goquery.NodeName(el) != "input" || (kind != "checkbox" && kind != "radio") {
		return fmt.Errorf("%s is not checkable: %w", selector, ErrNotWritable)
	}

	if kind == "radio" && checked {
		if name, ok := el.Attr("name"); ok {
			s.current().Find(fmt.Sprintf(`input[type="radio"][name=%q]`, name)).RemoveAttr("checked")
		}
	}

	if checked {
		el.SetAttr("checked", "checked")
	} else {
		el.RemoveAttr("checked")
	}

	s.dispatch(selector, "focus", "click", "input", "change", "blur")
	return nil
}

func (s *Static) Click(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	el, err := s.writable(selector)
	if err != nil {
		return err
	}
	s.dispatch(selector, "click")

	if advancesStep(el) && s.step < len(s.docs)-1 {
		s.step++
	}
	return nil
}

func (s *Static) Value(ctx context.Context, selector string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	el := s.current().Find(selector).First()
	if el.Length() == 0 {
		return "", fmt.Errorf("%s: %w", selector, ErrNotFound)
	}

	switch goquery.NodeName(el) {
	case "textarea":
		return el.Text(), nil
	case "select":
		return selectedValue(el), nil
	case "input":
		return el.AttrOr("value", ""), nil
	default:
		return strings.TrimSpace(el.Text()), nil
	}
}

func (s *Static) Selected(ctx context.Context, selector string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	el := s.current().Find(selector).First()
	if el.Length() == 0 {
		return nil, fmt.Errorf("%s: %w", selector, ErrNotFound)
	}
	if goquery.NodeName(el) != "select" {
		return nil, fmt.Errorf("%s is not a select: %w", selector, ErrNotWritable)
	}
	if _, multiple := el.Attr("multiple"); !multiple {
		if v := selectedValue(el); v != "" || el.Find("option").Length() > 0 {
			return []string{v}, nil
		}
		return nil, nil
	}
	var values []string
	el.Find("option[selected]").Each(func(_ int, opt *goquery.Selection) {
		values = append(values, optionValue(opt))
	})
	return values, nil
}

func (s *Static) Checked(ctx context.Context, selector string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	el := s.current().Find(selector).First()
	if el.Length() == 0 {
		return false, fmt.Errorf("%s: %w", selector, ErrNotFound)
	}
	_, ok := el.Attr("checked")
	return ok, nil
}

func (s *Static) current() *goquery.Document {
	return s.docs[s.step]
}

func (s *Static) writable(selector string) (*goquery.Selection, error) {
	el := s.current().Find(selector).First()
	if el.Length() == 0 {
		return nil, fmt.Errorf("%s: %w", selector, ErrNotFound)
	}
	if _, disabled := el.Attr("disabled"); disabled {
		return nil, fmt.Errorf("%s is disabled: %w", selector, ErrNotWritable)
	}
	return el, nil
}

func (s *Static) dispatch(selector string, types ...string) {
	for _, t := range types {
		s.events = append(s.events, Event{Selector: selector, Type: t})
	}
}

func optionValue(opt *goquery.Selection) string {
	if v, ok := opt.Attr("value"); ok {
		return v
	}
	return strings.TrimSpace(opt.Text())
}

func selectOption(sel *goquery.Selection, value string) bool {
	_, multiple := sel.Attr("multiple")

	var target *goquery.Selection
	sel.Find("option").EachWithBreak(func(_ int, opt *goquery.Selection) bool {
		if optionValue(opt) == value {
			target = opt
			return false
		}
		return true
	})
	if target == nil {
		return false
	}

	if !multiple {
		sel.Find("option").RemoveAttr("selected")
	}
	target.SetAttr("selected", "selected")
	return true
}

func selectedValue(sel *goquery.Selection) string {
	selected := sel.Find("option[selected]").First()
	if selected.Length() == 0 {
		selected = sel.Find("option").First()
	}
	if selected.Length() == 0 {
		return ""
	}
	return optionValue(selected)
}

func advancesStep(el *goquery.Selection) bool {
	switch goquery.NodeName(el) {
	case "button", "a":
		return true
	case "input":
		t := strings.ToLower(el.AttrOr("type", ""))
		return t == "submit" || t == "button"
	default:
		return false
	}
}
