package page

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// ChromeOptions configures the headless browser used for client-rendered forms.
type ChromeOptions struct {
	Headless bool
	// Timeout bounds every single browser action.
	Timeout time.Duration
	Logger  *zap.Logger
}

// Chrome is a live page driven through the Chrome DevTools protocol.
type Chrome struct {
	url     string
	tab     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
	logger  *zap.Logger
}

// OpenChrome launches a browser, navigates to rawURL and waits for the body to be ready.
// Close must be called to release the browser.
func OpenChrome(ctx context.Context, rawURL string, opts ChromeOptions) (*Chrome, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", opts.Headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)...,
	)
	tab, tabCancel := chromedp.NewContext(allocCtx)

	c := &Chrome{
		url: rawURL,
		tab: tab,
		cancel: func() {
			tabCancel()
			allocCancel()
		},
		timeout: timeout,
		logger:  logger,
	}

	logger.Debug("starting browser", zap.String("url", rawURL), zap.Bool("headless", opts.Headless))

	if err := c.run(ctx, chromedp.Navigate(rawURL), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		c.Close()
		return nil, &Error{URL: rawURL, Message: "browser navigation failed", Cause: err}
	}

	return c, nil
}

// Close shuts the browser down.
func (c *Chrome) Close() {
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Chrome) URL() string {
	var location string
	if err := c.run(context.Background(), chromedp.Location(&location)); err == nil && location != "" {
		return location
	}
	return c.url
}

func (c *Chrome) Title(ctx context.Context) (string, error) {
	var title string
	if err := c.run(ctx, chromedp.Title(&title)); err != nil {
		return "", err
	}
	return title, nil
}

func (c *Chrome) Snapshot(ctx context.Context) (*goquery.Document, error) {
	var html string
	if err := c.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// setValueScript writes through the prototype's native value setter instead of the
// attribute so virtual-DOM libraries that track the last value notice the change, then
// replays the event sequence a user would produce.
const setValueScript = `(function(selector, value) {
	const el = document.querySelector(selector);
	if (!el || el.disabled) { return false; }
	const proto = el instanceof HTMLTextAreaElement ? HTMLTextAreaElement.prototype
		: el instanceof HTMLSelectElement ? HTMLSelectElement.prototype
		: HTMLInputElement.prototype;
	const setter = Object.getOwnPropertyDescriptor(proto, 'value').set;
	el.focus();
	el.dispatchEvent(new FocusEvent('focus', { bubbles: true }));
	setter.call(el, value);
	el.dispatchEvent(new Event('input', { bubbles: true }));
	el.dispatchEvent(new Event('change', { bubbles: true }));
	el.blur();
	el.dispatchEvent(new FocusEvent('blur', { bubbles: true }));
	return true;
})(%s, %s)`

const setCheckedScript = `(function(selector, checked) {
	const el = document.querySelector(selector);
	if (!el || el.disabled) { return false; }
	const setter = Object.getOwnPropertyDescriptor(HTMLInputElement.prototype, 'checked').set;
	el.focus();
	el.dispatchEvent(new FocusEvent('focus', { bubbles: true }));
	if (el.checked !== checked) {
		el.click();
	}
	if (el.checked !== checked) {
		setter.call(el, checked);
		el.dispatchEvent(new Event('input', { bubbles: true }));
		el.dispatchEvent(new Event('change', { bubbles: true }));
	}
	el.blur();
	el.dispatchEvent(new FocusEvent('blur', { bubbles: true }));
	return el.checked === checked;
})(%s, %s)`

const selectOptionScript = `(function(selector, value) {
	const el = document.querySelector(selector);
	if (!el || el.disabled) { return false; }
	const option = Array.from(el.options).find(o => o.value === value);
	if (!option) { return false; }
	const setter = Object.getOwnPropertyDescriptor(HTMLSelectElement.prototype, 'value').set;
	el.focus();
	if (el.multiple) {
		option.selected = true;
	} else {
		setter.call(el, value);
	}
	el.dispatchEvent(new Event('input', { bubbles: true }));
	el.dispatchEvent(new Event('change', { bubbles: true }));
	el.blur();
	return true;
})(%s, %s)`

func (c *Chrome) SetValue(ctx context.Context, selector, value string) error {
	return c.evalWrite(ctx, setValueScript, selector, value)
}

func (c *Chrome) SelectOption(ctx context.Context, selector, value string) error {
	return c.evalWrite(ctx, selectOptionScript, selector, value)
}

func (c *Chrome) SetChecked(ctx context.Context, selector string, checked bool) error {
	return c.evalWrite(ctx, setCheckedScript, selector, checked)
}

func (c *Chrome) Click(ctx context.Context, selector string) error {
	return c.run(ctx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

func (c *Chrome) Value(ctx context.Context, selector string) (string, error) {
	script, err := script(`(function(selector) {
	const el = document.querySelector(selector);
	if (!el) { return null; }
	return 'value' in el ? String(el.value) : el.textContent;
})(%s)`, selector)
	if err != nil {
		return "", err
	}

	var value *string
	if err := c.run(ctx, chromedp.Evaluate(script, &value)); err != nil {
		return "", err
	}
	if value == nil {
		return "", fmt.Errorf("%s: %w", selector, ErrNotFound)
	}
	return *value, nil
}

func (c *Chrome) Selected(ctx context.Context, selector string) ([]string, error) {
	script, err := script(`(function(selector) {
	const el = document.querySelector(selector);
	if (!el || !el.options) { return null; }
	return Array.from(el.selectedOptions).map(o => o.value);
})(%s)`, selector)
	if err != nil {
		return nil, err
	}

	var values *[]string
	if err := c.run(ctx, chromedp.Evaluate(script, &values)); err != nil {
		return nil, err
	}
	if values == nil {
		return nil, fmt.Errorf("%s: %w", selector, ErrNotFound)
	}
	return *values, nil
}

func (c *Chrome) Checked(ctx context.Context, selector string) (bool, error) {
	script, err := script(`(function(selector) {
	const el = document.querySelector(selector);
	return el ? !!el.checked : null;
})(%s)`, selector)
	if err != nil {
		return false, err
	}

	var checked *bool
	if err := c.run(ctx, chromedp.Evaluate(script, &checked)); err != nil {
		return false, err
	}
	if checked == nil {
		return false, fmt.Errorf("%s: %w", selector, ErrNotFound)
	}
	return *checked, nil
}

func (c *Chrome) evalWrite(ctx context.Context, format string, args ...any) error {
	src, err := script(format, args...)
	if err != nil {
		return err
	}

	var ok bool
	if err := c.run(ctx, chromedp.Evaluate(src, &ok)); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%v: %w", args[0], ErrNotWritable)
	}
	return nil
}

// run executes actions on the tab, bounded by the per-action timeout and the caller's context.
func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	runCtx, cancel := context.WithTimeout(c.tab, c.timeout)
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

// script renders a JS snippet with JSON-encoded arguments.
func script(format string, args ...any) (string, error) {
	encoded := make([]any, 0, len(args))
	for _, arg := range args {
		b, err := json.Marshal(arg)
		if err != nil {
			return "", fmt.Errorf("encode script argument: %w", err)
		}
		encoded = append(encoded, string(b))
	}
	return fmt.Sprintf(format, encoded...), nil
}
