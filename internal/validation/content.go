package validation

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/jonathan/phish-simulator/internal/types"
)

// Part names used in violations
const (
	PartEmail   = "email"
	PartSMS     = "sms"
	PartLanding = "landing"
)

// voidElements never have an end tag
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true, "hr": true, "img": true,
	"input": true, "link": true, "meta": true, "source": true, "track": true, "wbr": true,
}

// impliedEnd elements may be closed implicitly by their parent
var impliedEnd = map[string]bool{
	"p": true, "li": true, "dt": true, "dd": true, "tr": true, "td": true, "th": true,
	"thead": true, "tbody": true, "tfoot": true, "option": true, "optgroup": true,
	"html": true, "head": true, "body": true, "colgroup": true,
}

// CheckEmail validates an email message part
func CheckEmail(e *types.EmailContent) *types.Violations {
	v := &types.Violations{}
	if e == nil {
		v.Add(PartEmail, "(root)", "required", "email content is missing")
		return v
	}

	if strings.TrimSpace(e.Subject) == "" {
		v.Add(PartEmail, "subject", "non_empty", "subject must not be empty")
	}
	if strings.TrimSpace(e.Template) == "" {
		v.Add(PartEmail, "template", "non_empty", "template body must not be empty")
		return v
	}

	for _, token := range []string{types.TokenRecipientName, types.TokenTrackingURL} {
		if !strings.Contains(e.Template, token) {
			v.Add(PartEmail, "template", "placeholder", fmt.Sprintf("template must contain the %s placeholder", token))
		}
	}

	if err := CheckHTML(e.Template); err != nil {
		v.Add(PartEmail, "template", "html_well_formed", err.Error())
	}
	v.Violations = append(v.Violations, CheckForbiddenPhrases(PartEmail, "template", e.Template, DefaultForbiddenPhrases)...)
	return v
}

// CheckSMS validates an sms message part
func CheckSMS(s *types.SMSContent) *types.Violations {
	v := &types.Violations{}
	if s == nil || len(s.Messages) == 0 {
		v.Add(PartSMS, "messages", "non_empty", "at least one message is required")
		return v
	}

	hasURL := false
	for i, msg := range s.Messages {
		field := fmt.Sprintf("messages[%d]", i)
		if strings.TrimSpace(msg) == "" {
			v.Add(PartSMS, field, "non_empty", "message must not be empty")
			continue
		}
		if strings.Contains(msg, types.TokenTrackingURL) {
			hasURL = true
		}
		v.Violations = append(v.Violations, CheckForbiddenPhrases(PartSMS, field, msg, DefaultForbiddenPhrases)...)
	}
	if !hasURL {
		v.Add(PartSMS, "messages", "placeholder", fmt.Sprintf("one message must contain the %s placeholder", types.TokenTrackingURL))
	}
	return v
}

// CheckLandingPage validates the landing page part. When requiresForm is set,
// at least one page must contain a form with an input field.
func CheckLandingPage(lp *types.LandingPage, requiresForm bool) *types.Violations {
	v := &types.Violations{}
	if lp == nil || len(lp.Pages) == 0 {
		v.Add(PartLanding, "pages", "non_empty", "at least one page is required")
		return v
	}

	hasForm := false
	for i, page := range lp.Pages {
		field := fmt.Sprintf("pages[%d].template", i)
		if strings.TrimSpace(page.Template) == "" {
			v.Add(PartLanding, field, "non_empty", "page template must not be empty")
			continue
		}
		if err := CheckHTML(page.Template); err != nil {
			v.Add(PartLanding, field, "html_well_formed", err.Error())
		}
		if containsForm(page.Template) {
			hasForm = true
		}
		v.Violations = append(v.Violations, CheckForbiddenPhrases(PartLanding, field, page.Template, DefaultForbiddenPhrases)...)
	}

	if requiresForm && !hasForm {
		v.Add(PartLanding, "pages", "form_required", "data-submission scenarios need a page with a <form> containing an input")
	}
	return v
}

// CheckHTML reports the first structural problem in an HTML fragment or document:
// an end tag with no matching start tag, or an element left open that may not be
// closed implicitly.
func CheckHTML(doc string) error {
	z := html.NewTokenizer(strings.NewReader(doc))
	var stack []string

	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() != io.EOF {
				return fmt.Errorf("unparseable HTML: %w", z.Err())
			}
			for i := len(stack) - 1; i >= 0; i-- {
				if !impliedEnd[stack[i]] {
					return fmt.Errorf("<%s> is never closed", stack[i])
				}
			}
			return nil
		case html.StartTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if !voidElements[tag] {
				stack = append(stack, tag)
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if voidElements[tag] {
				continue
			}
			idx := -1
			for i := len(stack) - 1; i >= 0; i-- {
				if stack[i] == tag {
					idx = i
					break
				}
			}
			if idx < 0 {
				return fmt.Errorf("unexpected </%s>", tag)
			}
			for i := len(stack) - 1; i > idx; i-- {
				if !impliedEnd[stack[i]] {
					return fmt.Errorf("<%s> is not closed before </%s>", stack[i], tag)
				}
			}
			stack = stack[:idx]
		}
	}
}

// containsForm reports whether doc has a form element holding an input control
func containsForm(doc string) bool {
	z := html.NewTokenizer(strings.NewReader(doc))
	depth := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return false
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "form":
				if tt == html.StartTagToken {
					depth++
				}
			case "input", "textarea", "select":
				if depth > 0 {
					return true
				}
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == "form" && depth > 0 {
				depth--
			}
		}
	}
}
