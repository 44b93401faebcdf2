package adapter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const controlSelector = "input, select, textarea"

var (
	spaceRe      = regexp.MustCompile(`\s+`)
	simpleIDRe   = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)
	hiddenStyle  = regexp.MustCompile(`(?i)display\s*:\s*none|visibility\s*:\s*hidden`)
	skippedTypes = map[string]bool{
		"hidden": true, "submit": true, "button": true, "reset": true, "image": true, "search": true,
	}
)

// isFillable reports whether el is a visible, enabled control a user could answer.
func isFillable(el *goquery.Selection) bool {
	if goquery.NodeName(el) == "input" && skippedTypes[strings.ToLower(el.AttrOr("type", "text"))] {
		return false
	}
	if _, ok := el.Attr("disabled"); ok {
		return false
	}
	if _, ok := el.Attr("readonly"); ok && goquery.NodeName(el) != "select" {
		return false
	}
	if el.Closest("fieldset[disabled]").Length() > 0 {
		return false
	}
	return isVisible(el)
}

// isVisible walks up the ancestors looking for markup that hides the element.
func isVisible(el *goquery.Selection) bool {
	for node := el; node.Length() > 0; node = node.Parent() {
		if _, ok := node.Attr("hidden"); ok {
			return false
		}
		if strings.EqualFold(node.AttrOr("aria-hidden", ""), "true") {
			return false
		}
		if hiddenStyle.MatchString(node.AttrOr("style", "")) {
			return false
		}
		if goquery.NodeName(node) == "template" {
			return false
		}
	}
	return true
}

func cleanText(text string) string {
	text = spaceRe.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)
	text = strings.TrimRight(text, "* ")
	return strings.TrimSpace(text)
}

func attrQuote(value string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(value)
}

// uniqueSelector builds a CSS selector that matches el and nothing else in doc.
func uniqueSelector(doc *goquery.Document, el *goquery.Selection) string {
	tag := goquery.NodeName(el)

	if id, ok := el.Attr("id"); ok && simpleIDRe.MatchString(id) {
		if sel := "#" + id; doc.Find(sel).Length() == 1 {
			return sel
		}
	}

	if name, ok := el.Attr("name"); ok && name != "" {
		sel := fmt.Sprintf(`%s[name="%s"]`, tag, attrQuote(name))
		if doc.Find(sel).Length() == 1 {
			return sel
		}
		if value, ok := el.Attr("value"); ok {
			sel = fmt.Sprintf(`%s[name="%s"][value="%s"]`, tag, attrQuote(name), attrQuote(value))
			if doc.Find(sel).Length() == 1 {
				return sel
			}
		}
	}

	return pathSelector(doc, el)
}

// pathSelector anchors an :nth-of-type chain at the closest ancestor with a unique id.
func pathSelector(doc *goquery.Document, el *goquery.Selection) string {
	var parts []string
	for node := el; node.Length() > 0; node = node.Parent() {
		tag := goquery.NodeName(node)
		if tag == "" || tag == "#document" {
			break
		}
		if id, ok := node.Attr("id"); ok && simpleIDRe.MatchString(id) && doc.Find("#"+id).Length() == 1 {
			parts = append(parts, "#"+id)
			break
		}
		if tag == "html" {
			parts = append(parts, "html")
			break
		}

		index := 1
		for sib := node.Prev(); sib.Length() > 0; sib = sib.Prev() {
			if goquery.NodeName(sib) == tag {
				index++
			}
		}
		parts = append(parts, fmt.Sprintf("%s:nth-of-type(%d)", tag, index))
	}

	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " > ")
}

// ownText returns the text of el without the text of nested controls and options.
func ownText(el *goquery.Selection) string {
	clone := el.Clone()
	clone.Find("select, textarea, option, script, style, .sr-only").Remove()
	return cleanText(clone.Text())
}
