// Package llm provides generation backend clients and the provider registry that
// resolves loosely formatted vendor/model hints to a cached, callable client.
package llm

import (
	"strings"
)

// Vendor identifies a supported generation backend
type Vendor string

// Vendor constants define the closed set of supported backends
const (
	// VendorOpenAI is the OpenAI chat completions API
	VendorOpenAI Vendor = "openai"
	// VendorGoogle is the Google Gemini API
	VendorGoogle Vendor = "google"
	// VendorWorkersAI is the Cloudflare Workers AI OpenAI-compatible gateway
	VendorWorkersAI Vendor = "workers-ai"
)

// vendorAliases maps accepted alternative names to canonical vendors
var vendorAliases = map[string]Vendor{
	"openai":     VendorOpenAI,
	"google":     VendorGoogle,
	"gemini":     VendorGoogle,
	"workers-ai": VendorWorkersAI,
	"workersai":  VendorWorkersAI,
	"cloudflare": VendorWorkersAI,
}

// vendorPrefixes lists redundant prefixes callers put in front of canonical model ids
var vendorPrefixes = map[Vendor][]string{
	VendorOpenAI:    {"openai/"},
	VendorGoogle:    {"google/", "gemini/", "models/"},
	VendorWorkersAI: {"workers-ai/", "cloudflare/"},
}

// ModelInfo describes one supported model
type ModelInfo struct {
	// Key is the symbolic name, e.g. GPT_4O_MINI
	Key string
	// ID is the canonical id sent to the backend
	ID string
}

// catalog is the closed set of supported models per vendor
var catalog = map[Vendor][]ModelInfo{
	VendorOpenAI: {
		{Key: "GPT_4O", ID: "gpt-4o"},
		{Key: "GPT_4O_MINI", ID: "gpt-4o-mini"},
		{Key: "GPT_4_1", ID: "gpt-4.1"},
		{Key: "GPT_4_1_MINI", ID: "gpt-4.1-mini"},
	},
	VendorGoogle: {
		{Key: "GEMINI_2_5_FLASH_LITE", ID: "gemini-2.5-flash-lite"},
		{Key: "GEMINI_2_5_FLASH", ID: "gemini-2.5-flash"},
		{Key: "GEMINI_2_5_PRO", ID: "gemini-2.5-pro"},
	},
	VendorWorkersAI: {
		{Key: "GPT_OSS_120B", ID: "@cf/openai/gpt-oss-120b"},
		{Key: "GPT_OSS_20B", ID: "@cf/openai/gpt-oss-20b"},
		{Key: "LLAMA_3_3_70B", ID: "@cf/meta/llama-3.3-70b-instruct-fp8-fast"},
	},
}

// DefaultVendor and DefaultModel are used when configuration names nothing valid
const (
	DefaultVendor = VendorGoogle
	DefaultModel  = "gemini-2.5-flash"
)

// Models returns the supported models for a vendor
func Models(v Vendor) []ModelInfo {
	out := make([]ModelInfo, len(catalog[v]))
	copy(out, catalog[v])
	return out
}

// NormalizeVendor folds a vendor hint to a supported vendor.
// Matching trims, lower-cases and maps underscores to hyphens before alias lookup.
func NormalizeVendor(hint string) (Vendor, bool) {
	h := strings.ToLower(strings.TrimSpace(hint))
	h = strings.ReplaceAll(h, "_", "-")
	v, ok := vendorAliases[h]
	return v, ok
}

// NormalizeModel maps a model hint to the canonical id for vendor v.
// Accepted forms: canonical id (any case), symbolic key (GPT_4O_MINI), hyphenated
// symbolic key (GPT-4O-MINI), and canonical id behind a redundant vendor prefix.
func NormalizeModel(v Vendor, hint string) (string, bool) {
	h := strings.TrimSpace(hint)
	if h == "" {
		return "", false
	}

	candidates := []string{h}
	lower := strings.ToLower(h)
	for _, prefix := range vendorPrefixes[v] {
		if strings.HasPrefix(lower, prefix) {
			candidates = append(candidates, h[len(prefix):])
		}
	}

	for _, c := range candidates {
		key := symbolicKey(c)
		for _, m := range catalog[v] {
			if strings.EqualFold(c, m.ID) || key == m.Key {
				return m.ID, true
			}
		}
	}
	return "", false
}

// symbolicKey upper-cases a hint and turns separators into underscores
func symbolicKey(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '-', '.', ' ':
			return '_'
		}
		return r
	}, strings.ToUpper(s))
}
