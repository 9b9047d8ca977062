package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeVendor(t *testing.T) {
	tests := []struct {
		hint string
		want Vendor
		ok   bool
	}{
		{"openai", VendorOpenAI, true},
		{"OPENAI", VendorOpenAI, true},
		{"  OpenAI ", VendorOpenAI, true},
		{"google", VendorGoogle, true},
		{"Gemini", VendorGoogle, true},
		{"workers_ai", VendorWorkersAI, true},
		{"WORKERS-AI", VendorWorkersAI, true},
		{"cloudflare", VendorWorkersAI, true},
		{"anthropic", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.hint, func(t *testing.T) {
			got, ok := NormalizeVendor(tt.hint)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeModel(t *testing.T) {
	tests := []struct {
		name   string
		vendor Vendor
		hint   string
		want   string
		ok     bool
	}{
		{"canonical", VendorOpenAI, "gpt-4o-mini", "gpt-4o-mini", true},
		{"canonical upper", VendorOpenAI, "GPT-4o-Mini", "gpt-4o-mini", true},
		{"symbolic key", VendorOpenAI, "GPT_4O_MINI", "gpt-4o-mini", true},
		{"hyphenated symbolic", VendorOpenAI, "GPT-4O-MINI", "gpt-4o-mini", true},
		{"dotted id", VendorOpenAI, "gpt-4.1", "gpt-4.1", true},
		{"dotted symbolic", VendorOpenAI, "GPT_4_1_MINI", "gpt-4.1-mini", true},
		{"vendor prefix", VendorOpenAI, "openai/gpt-4o-mini", "gpt-4o-mini", true},
		{"google prefix", VendorGoogle, "google/gemini-2.5-flash", "gemini-2.5-flash", true},
		{"models prefix", VendorGoogle, "models/gemini-2.5-pro", "gemini-2.5-pro", true},
		{"gemini symbolic", VendorGoogle, "GEMINI_2_5_FLASH_LITE", "gemini-2.5-flash-lite", true},
		{"workers id", VendorWorkersAI, "@cf/openai/gpt-oss-120b", "@cf/openai/gpt-oss-120b", true},
		{"workers symbolic", VendorWorkersAI, "gpt_oss_120b", "@cf/openai/gpt-oss-120b", true},
		{"wrong vendor", VendorGoogle, "gpt-4o-mini", "", false},
		{"unknown model", VendorOpenAI, "gpt-2", "", false},
		{"empty", VendorOpenAI, "  ", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeModel(tt.vendor, tt.hint)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestModels_ReturnsCopy(t *testing.T) {
	models := Models(VendorOpenAI)
	assert.NotEmpty(t, models)

	models[0].ID = "changed"
	assert.NotEqual(t, "changed", Models(VendorOpenAI)[0].ID)
}

func TestVendorConstants(t *testing.T) {
	assert.Equal(t, Vendor("openai"), VendorOpenAI)
	assert.Equal(t, Vendor("google"), VendorGoogle)
	assert.Equal(t, Vendor("workers-ai"), VendorWorkersAI)
}
