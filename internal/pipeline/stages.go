package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jonathan/phish-simulator/internal/brand"
	"github.com/jonathan/phish-simulator/internal/htmlfix"
	"github.com/jonathan/phish-simulator/internal/prompts"
	"github.com/jonathan/phish-simulator/internal/schemas"
	"github.com/jonathan/phish-simulator/internal/types"
	"github.com/jonathan/phish-simulator/internal/validation"
)

const noneProvided = "(none provided)"

// fetchPolicyContext loads organization policy text. Failures degrade to an
// empty context with a warning.
func (p *Pipeline) fetchPolicyContext(ctx context.Context, r *run) {
	if p.deps.Policy == nil || r.req.Organization == "" {
		return
	}

	text, err := p.deps.Policy.Fetch(ctx, r.req.Organization)
	if err != nil {
		r.logger.Warn().
			Err(err).
			Str("stage", string(StageFetchPolicyContext)).
			Msg("policy context unavailable, continuing without it")
		r.warnings = append(r.warnings, "organization policy context was unavailable")
		return
	}
	r.policy = validation.SanitizeExternal(r.logger, text, "ORGANIZATION POLICY")
}

func (p *Pipeline) analyze(ctx context.Context, r *run) error {
	policyText := r.policy
	if policyText == "" {
		policyText = noneProvided
	}

	analysis, _, err := GenerateStructured[types.ScenarioAnalysis](ctx, r.gen, StructuredCall{
		Label:      string(StageAnalyze),
		PromptFile: prompts.GenerationFile,
		PromptKey:  prompts.KeyAnalyzeScenario,
		Schema:     schemas.ScenarioAnalysis,
		Data: map[string]string{
			"Channel":    channelName(r.req.Kind),
			"Topic":      r.req.Topic,
			"Difficulty": string(r.req.Difficulty),
			"Language":   r.req.Language,
			"Profile":    formatProfile(r.req.Profile),
			"Policy":     policyText,
		},
		Temperature: 0.7,
	}, nil)
	if err != nil {
		return err
	}

	r.analysis = &analysis
	r.logger.Debug().
		Str("scenario", analysis.Scenario).
		Str("method", analysis.Method).
		Msg("scenario analyzed")
	return nil
}

// resolveBrand looks up styling for the impersonated organization. The resolver
// returns a usable context even alongside an error.
func (p *Pipeline) resolveBrand(ctx context.Context, r *run) {
	if p.deps.Brands == nil {
		return
	}

	bc, err := p.deps.Brands.Resolve(ctx, brand.Query{
		Topic:        r.req.Topic,
		Organization: r.req.Organization,
		Brand:        r.analysis.Brand,
		Industry:     r.analysis.Industry,
	})
	if err != nil {
		r.logger.Warn().Err(err).Msg("brand lookup failed, using generic styling")
	}
	r.brand = bc
}

func (p *Pipeline) generateMessage(ctx context.Context, r *run) (*types.MessagePart, types.PartStatus, error) {
	analysisJSON := formatAnalysis(r.analysis)
	data := map[string]string{
		"Analysis":   analysisJSON,
		"Difficulty": string(r.req.Difficulty),
		"Language":   r.req.Language,
	}
	status := types.PartStatus{Part: r.req.Kind.MessagePartName()}

	if r.req.Kind == types.KindSMS {
		sms, calls, err := GenerateStructured[types.SMSContent](ctx, r.gen, StructuredCall{
			Label:       string(StageGenerateMessage),
			PromptFile:  prompts.GenerationFile,
			PromptKey:   prompts.KeyGenerateSMS,
			Schema:      schemas.SMS,
			Data:        data,
			Temperature: 0.8,
		}, func(s types.SMSContent) []string {
			return validation.CheckSMS(&s).Messages()
		})
		if err != nil {
			return nil, status, err
		}
		status.Valid, status.Escalated = true, calls > 1
		return &types.MessagePart{SMS: &sms}, status, nil
	}

	email, calls, err := GenerateStructured[types.EmailContent](ctx, r.gen, StructuredCall{
		Label:       string(StageGenerateMessage),
		PromptFile:  prompts.GenerationFile,
		PromptKey:   prompts.KeyGenerateEmail,
		Schema:      schemas.Email,
		Data:        data,
		Temperature: 0.8,
	}, func(e types.EmailContent) []string {
		return validation.CheckEmail(&e).Messages()
	})
	if err != nil {
		return nil, status, err
	}

	if email.FromName == "" {
		email.FromName = r.analysis.Sender.Name
	}
	if email.FromAddress == "" {
		email.FromAddress = r.analysis.Sender.Address
	}
	status.Valid, status.Escalated = true, calls > 1
	return &types.MessagePart{Email: &email}, status, nil
}

func (p *Pipeline) generateLandingPage(ctx context.Context, r *run) (*types.LandingPage, types.PartStatus, error) {
	requiresForm := r.analysis.RequiresForm()
	status := types.PartStatus{Part: validation.PartLanding}

	lp, calls, err := GenerateStructured[types.LandingPage](ctx, r.gen, StructuredCall{
		Label:      string(StageGenerateLandingPage),
		PromptFile: prompts.GenerationFile,
		PromptKey:  prompts.KeyGenerateLandingPage,
		Schema:     schemas.LandingPage,
		Data: map[string]string{
			"Analysis":   formatAnalysis(r.analysis),
			"Brand":      formatBrand(r.brand),
			"Difficulty": string(r.req.Difficulty),
			"Language":   r.req.Language,
			"Method":     r.analysis.Method,
		},
		Temperature: 0.7,
	}, func(lp types.LandingPage) []string {
		return validation.CheckLandingPage(&lp, requiresForm).Messages()
	})
	if err != nil {
		return nil, status, err
	}

	status.Valid, status.Escalated = true, calls > 1
	return &lp, status, nil
}

// postProcess sanitizes every HTML template and records the fixes per part
func (p *Pipeline) postProcess(ctx context.Context, r *run) error {
	meta := htmlfix.Meta{
		LogoURL:       r.brand.LogoURL,
		BrandName:     r.brand.BrandName,
		TrackingToken: types.TokenTrackingURL,
	}

	if r.message != nil && r.message.Email != nil {
		out, fixes, err := p.deps.HTML.Process(ctx, r.message.Email.Template, meta)
		if err != nil {
			return fmt.Errorf("%s: %w", r.msgStatus.Part, err)
		}
		r.message.Email.Template = out
		r.msgStatus.Fixes = fixes
	}

	if r.landing != nil {
		seen := map[string]bool{}
		for i := range r.landing.Pages {
			out, fixes, err := p.deps.HTML.Process(ctx, r.landing.Pages[i].Template, meta)
			if err != nil {
				return fmt.Errorf("%s page %d: %w", validation.PartLanding, i+1, err)
			}
			r.landing.Pages[i].Template = out
			for _, fix := range fixes {
				if !seen[fix] {
					seen[fix] = true
					r.lpStatus.Fixes = append(r.lpStatus.Fixes, fix)
				}
			}
		}
	}

	if fixed := len(r.msgStatus.Fixes) + len(r.lpStatus.Fixes); fixed > 0 {
		r.logger.Debug().
			Strs("message_fixes", r.msgStatus.Fixes).
			Strs("landing_fixes", r.lpStatus.Fixes).
			Msg("templates post-processed")
	}
	return nil
}

func channelName(kind types.ContentKind) string {
	if kind == types.KindSMS {
		return "SMS"
	}
	return "email"
}

func formatProfile(profile *types.TargetProfile) string {
	if profile == nil {
		return noneProvided
	}

	var lines []string
	if profile.Name != "" {
		lines = append(lines, "Name: "+profile.Name)
	}
	if profile.Department != "" {
		lines = append(lines, "Department: "+profile.Department)
	}
	if len(profile.Triggers) > 0 {
		lines = append(lines, "Behavioral triggers: "+strings.Join(profile.Triggers, ", "))
	}
	if len(profile.Vulnerabilities) > 0 {
		lines = append(lines, "Vulnerabilities: "+strings.Join(profile.Vulnerabilities, ", "))
	}
	if len(lines) == 0 {
		return noneProvided
	}
	return strings.Join(lines, "\n")
}

func formatAnalysis(a *types.ScenarioAnalysis) string {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return a.Scenario
	}
	return string(data)
}

func formatBrand(bc types.BrandContext) string {
	if bc.BrandName == "" && bc.Industry == "" {
		return noneProvided
	}
	data, err := json.MarshalIndent(bc, "", "  ")
	if err != nil {
		return bc.BrandName
	}
	return string(data)
}
