package htmlfix

import (
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Fix names recorded on a part's status
const (
	FixScriptRemoved      = "script_removed"
	FixHandlerRemoved     = "event_handler_removed"
	FixJavascriptURL      = "javascript_url_replaced"
	FixImageReplaced      = "image_replaced"
	FixImageRemoved       = "image_removed"
	FixAltAdded           = "alt_added"
	FixExternalLinkTarget = "link_target_normalized"
)

// Meta carries the context a template is processed with
type Meta struct {
	// LogoURL replaces broken images when set
	LogoURL string
	// BrandName is used as alt text for replaced images
	BrandName string
	// TrackingToken replaces javascript: links
	TrackingToken string
}

// Processor rewrites a generated template and reports the fixes it applied
type Processor interface {
	Process(ctx context.Context, template string, meta Meta) (string, []string, error)
}

// DocumentProcessor is the goquery-backed Processor
type DocumentProcessor struct {
	images ImageValidator
}

// NewDocumentProcessor creates a processor. images may be nil, which skips image probing.
func NewDocumentProcessor(images ImageValidator) *DocumentProcessor {
	return &DocumentProcessor{images: images}
}

var fullDocumentPattern = regexp.MustCompile(`(?i)<html[\s>]`)

// Process strips scripts and inline handlers, replaces javascript: URLs, adds missing alt
// text and swaps broken images for the brand logo (or drops them when no logo is known).
// Fragments stay fragments; full documents keep their doctype and head.
func (p *DocumentProcessor) Process(ctx context.Context, template string, meta Meta) (string, []string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(template))
	if err != nil {
		return "", nil, &ParseError{Message: "failed to parse template", Cause: err}
	}

	fixes := newFixSet()

	if scripts := doc.Find("script"); scripts.Length() > 0 {
		scripts.Remove()
		fixes.add(FixScriptRemoved)
	}

	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		var handlers []string
		for _, attr := range s.Get(0).Attr {
			if strings.HasPrefix(strings.ToLower(attr.Key), "on") {
				handlers = append(handlers, attr.Key)
			}
		}
		for _, key := range handlers {
			s.RemoveAttr(key)
			fixes.add(FixHandlerRemoved)
		}
	})

	token := meta.TrackingToken
	if token == "" {
		token = "#"
	}
	doc.Find("a[href], form[action]").Each(func(_ int, s *goquery.Selection) {
		attr := "href"
		if goquery.NodeName(s) == "form" {
			attr = "action"
		}
		val, _ := s.Attr(attr)
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(val)), "javascript:") {
			s.SetAttr(attr, token)
			fixes.add(FixJavascriptURL)
		}
	})

	doc.Find("a[target]").Each(func(_ int, s *goquery.Selection) {
		if target, _ := s.Attr("target"); target == "_blank" {
			if rel, _ := s.Attr("rel"); !strings.Contains(rel, "noopener") {
				s.SetAttr("rel", strings.TrimSpace(rel+" noopener"))
				fixes.add(FixExternalLinkTarget)
			}
		}
	})

	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		if p.images != nil && !p.images.Valid(ctx, src) {
			if meta.LogoURL != "" && src != meta.LogoURL {
				s.SetAttr("src", meta.LogoURL)
				if meta.BrandName != "" {
					s.SetAttr("alt", meta.BrandName)
				}
				fixes.add(FixImageReplaced)
			} else {
				s.Remove()
				fixes.add(FixImageRemoved)
				return
			}
		}
		if _, ok := s.Attr("alt"); !ok {
			s.SetAttr("alt", meta.BrandName)
			fixes.add(FixAltAdded)
		}
	})

	var out string
	if fullDocumentPattern.MatchString(template) {
		out, err = doc.Html()
	} else {
		out, err = doc.Find("body").Html()
	}
	if err != nil {
		return "", nil, &ParseError{Message: "failed to render template", Cause: err}
	}
	return out, fixes.list(), nil
}

// fixSet keeps fixes unique and in first-seen order
type fixSet struct {
	seen  map[string]bool
	order []string
}

func newFixSet() *fixSet {
	return &fixSet{seen: make(map[string]bool)}
}

func (f *fixSet) add(name string) {
	if !f.seen[name] {
		f.seen[name] = true
		f.order = append(f.order, name)
	}
}

func (f *fixSet) list() []string {
	return f.order
}
