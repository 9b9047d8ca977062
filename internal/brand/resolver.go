// Package brand resolves styling guidance for the organization a scenario impersonates.
package brand

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jonathan/phish-simulator/internal/kvstore"
	"github.com/jonathan/phish-simulator/internal/types"
)

// Query is what the landing page stage knows about the impersonated organization
type Query struct {
	Topic        string
	Organization string
	Brand        string
	Industry     string
}

// Resolver returns brand context for a query. Implementations return a usable
// (possibly generic) context together with any lookup error.
type Resolver interface {
	Resolve(ctx context.Context, q Query) (types.BrandContext, error)
}

// KeyPrefix namespaces brand overrides in the store
const KeyPrefix = "brand"

// DefaultLogoTemplate turns a domain into a favicon URL
const DefaultLogoTemplate = "https://www.google.com/s2/favicons?domain=%s&sz=128"

type industryStyle struct {
	name       string
	keywords   []string
	colors     []string
	typography string
	patterns   []string
}

var industries = []industryStyle{
	{
		name:       "Finance",
		keywords:   []string{"bank", "payroll", "invoice", "payment", "tax", "wire", "credit", "finance", "expense"},
		colors:     []string{"#003366", "#FFFFFF", "#0A7D3B"},
		typography: "Georgia, 'Times New Roman', serif",
		patterns:   []string{"account summary table", "security padlock badge", "formal footer with regulatory text"},
	},
	{
		name:       "Technology",
		keywords:   []string{"password", "login", "sso", "microsoft", "google", "office", "it ", "mfa", "vpn", "account"},
		colors:     []string{"#0078D4", "#F3F2F1", "#323130"},
		typography: "'Segoe UI', Roboto, Helvetica, Arial, sans-serif",
		patterns:   []string{"centered sign-in card", "product logo above form", "minimal footer links"},
	},
	{
		name:       "Logistics",
		keywords:   []string{"parcel", "delivery", "package", "shipment", "courier", "tracking", "dhl", "ups", "fedex"},
		colors:     []string{"#FFCC00", "#D40511", "#333333"},
		typography: "Arial, Helvetica, sans-serif",
		patterns:   []string{"tracking number banner", "delivery timeline", "reschedule button"},
	},
	{
		name:       "Human Resources",
		keywords:   []string{" hr ", "benefit", "holiday", "leave", "pension", "policy", "handbook", "onboarding"},
		colors:     []string{"#5C2D91", "#FFFFFF", "#E6E6E6"},
		typography: "Verdana, Geneva, sans-serif",
		patterns:   []string{"intranet header", "document preview card", "acknowledge button"},
	},
	{
		name:       "Retail",
		keywords:   []string{"order", "voucher", "gift card", "refund", "discount", "shop", "amazon"},
		colors:     []string{"#232F3E", "#FF9900", "#FFFFFF"},
		typography: "'Amazon Ember', Arial, sans-serif",
		patterns:   []string{"order summary", "product thumbnail grid", "call-to-action button"},
	},
}

var genericStyle = industryStyle{
	name:       "General",
	colors:     []string{"#1F2937", "#FFFFFF", "#2563EB"},
	typography: "Helvetica, Arial, sans-serif",
	patterns:   []string{"simple header with logo", "single call-to-action"},
}

// CatalogResolver serves overrides stored under brand:<slug> and otherwise
// derives styling from industry keywords in the query.
type CatalogResolver struct {
	store        kvstore.Store
	logoTemplate string
	logger       zerolog.Logger
}

// NewCatalogResolver creates a resolver. store may be nil to disable overrides.
func NewCatalogResolver(store kvstore.Store, logger zerolog.Logger) *CatalogResolver {
	return &CatalogResolver{
		store:        store,
		logoTemplate: DefaultLogoTemplate,
		logger:       logger.With().Str("component", "brand_resolver").Logger(),
	}
}

// Resolve looks for a stored override for the brand then the organization,
// and falls back to the keyword catalog. A store failure is returned alongside
// the catalog result.
func (r *CatalogResolver) Resolve(ctx context.Context, q Query) (types.BrandContext, error) {
	var lookupErr error
	for _, name := range []string{q.Brand, q.Organization} {
		if strings.TrimSpace(name) == "" || r.store == nil {
			continue
		}
		bc, found, err := r.override(ctx, name)
		if err != nil {
			lookupErr = err
			continue
		}
		if found {
			return bc, nil
		}
	}

	style := detectIndustry(q)
	bc := types.BrandContext{
		BrandName:  firstNonEmpty(q.Brand, q.Organization),
		Industry:   style.name,
		Colors:     append([]string(nil), style.colors...),
		Typography: style.typography,
		Patterns:   append([]string(nil), style.patterns...),
	}
	if domain := domainFor(bc.BrandName); domain != "" {
		bc.LogoURL = fmt.Sprintf(r.logoTemplate, url.QueryEscape(domain))
	}
	return bc, lookupErr
}

func (r *CatalogResolver) override(ctx context.Context, name string) (types.BrandContext, bool, error) {
	key := fmt.Sprintf("%s:%s", KeyPrefix, Slug(name))
	data, err := r.store.Get(ctx, key)
	if errors.Is(err, kvstore.ErrNotFound) {
		return types.BrandContext{}, false, nil
	}
	if err != nil {
		return types.BrandContext{}, false, fmt.Errorf("brand lookup %s: %w", key, err)
	}

	var bc types.BrandContext
	if err := json.Unmarshal(data, &bc); err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("ignoring unreadable brand override")
		return types.BrandContext{}, false, nil
	}
	if bc.BrandName == "" {
		bc.BrandName = name
	}
	return bc, true, nil
}

// Save stores an override for name
func (r *CatalogResolver) Save(ctx context.Context, name string, bc types.BrandContext) error {
	if r.store == nil {
		return errors.New("brand overrides are disabled")
	}
	data, err := json.Marshal(bc)
	if err != nil {
		return fmt.Errorf("failed to marshal brand context: %w", err)
	}
	return r.store.Put(ctx, fmt.Sprintf("%s:%s", KeyPrefix, Slug(name)), data)
}

func detectIndustry(q Query) industryStyle {
	if q.Industry != "" {
		for _, ind := range industries {
			if strings.EqualFold(ind.name, q.Industry) {
				return ind
			}
		}
	}

	text := " " + strings.ToLower(strings.Join([]string{q.Topic, q.Brand, q.Industry}, " ")) + " "
	best, bestScore := genericStyle, 0
	for _, ind := range industries {
		score := 0
		for _, kw := range ind.keywords {
			if strings.Contains(text, kw) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = ind, score
		}
	}
	return best
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lower-cases name and joins its words with hyphens
func Slug(name string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(name), "-"), "-")
}

// domainFor guesses a domain: names that already look like one are kept,
// single words become <word>.com
func domainFor(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ""
	}
	if strings.Contains(name, ".") && !strings.Contains(name, " ") {
		return name
	}
	slug := strings.ReplaceAll(Slug(name), "-", "")
	if slug == "" {
		return ""
	}
	return slug + ".com"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
