package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/phish-simulator/internal/types"
)

func rules(v *types.Violations) []string {
	var out []string
	for _, viol := range v.Violations {
		out = append(out, viol.Rule)
	}
	return out
}

func TestCheckHTML(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{name: "simple fragment", doc: `<div><p>Hello</p></div>`},
		{name: "void elements", doc: `<div><img src="x.png"><br><input name="a"></div>`},
		{name: "self-closing void", doc: `<p>line<br/>next</p>`},
		{name: "implied paragraph end", doc: `<div><p>one<p>two</div>`},
		{name: "implied list items", doc: `<ul><li>a<li>b</ul>`},
		{name: "full document", doc: `<!DOCTYPE html><html><head><title>t</title></head><body><p>x</body></html>`},
		{name: "plain text", doc: `just text`},
		{name: "unclosed div", doc: `<div><span>x</span>`, wantErr: "<div> is never closed"},
		{name: "stray end tag", doc: `<p>x</p></div>`, wantErr: "unexpected </div>"},
		{name: "misnested", doc: `<div><span>x</div></span>`, wantErr: "<span> is not closed before </div>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckHTML(tt.doc)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestCheckEmail_Valid(t *testing.T) {
	email := &types.EmailContent{
		Subject:  "Action required: payroll update",
		Template: `<html><body><p>Hi {FIRSTNAME},</p><p><a href="{PHISHINGURL}">Review</a></p></body></html>`,
	}
	assert.True(t, CheckEmail(email).Empty())
}

func TestCheckEmail_Violations(t *testing.T) {
	tests := []struct {
		name  string
		email *types.EmailContent
		want  []string
	}{
		{
			name:  "missing",
			email: nil,
			want:  []string{"required"},
		},
		{
			name:  "empty subject and body",
			email: &types.EmailContent{},
			want:  []string{"non_empty", "non_empty"},
		},
		{
			name:  "missing placeholders",
			email: &types.EmailContent{Subject: "s", Template: "<p>Hello</p>"},
			want:  []string{"placeholder", "placeholder"},
		},
		{
			name:  "broken html",
			email: &types.EmailContent{Subject: "s", Template: "<div>{FIRSTNAME} {PHISHINGURL}"},
			want:  []string{"html_well_formed"},
		},
		{
			name:  "asks for card data",
			email: &types.EmailContent{Subject: "s", Template: "<p>{FIRSTNAME} send your CVV to {PHISHINGURL}</p>"},
			want:  []string{"forbidden_phrase"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := CheckEmail(tt.email)
			assert.Equal(t, tt.want, rules(v))
			for _, viol := range v.Violations {
				assert.Equal(t, PartEmail, viol.Part)
			}
		})
	}
}

func TestCheckSMS(t *testing.T) {
	tests := []struct {
		name string
		sms  *types.SMSContent
		want []string
	}{
		{
			name: "valid",
			sms:  &types.SMSContent{Messages: []string{"Your parcel is waiting", "Track it: {PHISHINGURL}"}},
		},
		{
			name: "nil",
			sms:  nil,
			want: []string{"non_empty"},
		},
		{
			name: "no messages",
			sms:  &types.SMSContent{},
			want: []string{"non_empty"},
		},
		{
			name: "no url",
			sms:  &types.SMSContent{Messages: []string{"Hello there"}},
			want: []string{"placeholder"},
		},
		{
			name: "blank message",
			sms:  &types.SMSContent{Messages: []string{" ", "Go to {PHISHINGURL}"}},
			want: []string{"non_empty"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rules(CheckSMS(tt.sms)))
		})
	}
}

func TestCheckLandingPage(t *testing.T) {
	formPage := types.Page{Type: "login", Template: `<form action="#"><input name="user"><button>Go</button></form>`}
	infoPage := types.Page{Type: "info", Template: `<div><h1>Account locked</h1><p>Contact support.</p></div>`}

	tests := []struct {
		name         string
		lp           *types.LandingPage
		requiresForm bool
		want         []string
	}{
		{
			name: "click only without form",
			lp:   &types.LandingPage{Pages: []types.Page{infoPage}},
		},
		{
			name:         "data submission with form",
			lp:           &types.LandingPage{Pages: []types.Page{formPage, infoPage}},
			requiresForm: true,
		},
		{
			name:         "data submission without form",
			lp:           &types.LandingPage{Pages: []types.Page{infoPage}},
			requiresForm: true,
			want:         []string{"form_required"},
		},
		{
			name:         "form without inputs does not count",
			lp:           &types.LandingPage{Pages: []types.Page{{Type: "form", Template: `<form><p>nothing</p></form>`}}},
			requiresForm: true,
			want:         []string{"form_required"},
		},
		{
			name: "no pages",
			lp:   &types.LandingPage{},
			want: []string{"non_empty"},
		},
		{
			name: "empty template",
			lp:   &types.LandingPage{Pages: []types.Page{{Type: "landing"}}},
			want: []string{"non_empty"},
		},
		{
			name: "malformed template",
			lp:   &types.LandingPage{Pages: []types.Page{{Type: "landing", Template: `<div><section>x</div>`}}},
			want: []string{"html_well_formed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rules(CheckLandingPage(tt.lp, tt.requiresForm)))
		})
	}
}
