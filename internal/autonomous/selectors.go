package autonomous

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jonathan/phish-simulator/internal/llm"
	"github.com/jonathan/phish-simulator/internal/pipeline"
	"github.com/jonathan/phish-simulator/internal/platform"
	"github.com/jonathan/phish-simulator/internal/prompts"
	"github.com/jonathan/phish-simulator/internal/resilience"
	"github.com/jonathan/phish-simulator/internal/schemas"
	"github.com/jonathan/phish-simulator/internal/types"
	"github.com/jonathan/phish-simulator/internal/validation"
)

// maxActivityEntries bounds how much timeline goes into a risk prompt
const maxActivityEntries = 20

// structuredCaller resolves a provider per call and runs structured prompts
type structuredCaller struct {
	providers pipeline.ProviderResolver
	policy    resilience.Policy
}

func (c structuredCaller) generator(ctx context.Context, vendor, model string) *pipeline.Generator {
	return pipeline.NewGenerator(c.providers.Resolve(ctx, vendor, model), c.policy)
}

// LLMTopicSelector picks group topics with a structured generation call
type LLMTopicSelector struct {
	structuredCaller
}

// NewLLMTopicSelector creates a selector using the default provider
func NewLLMTopicSelector(providers pipeline.ProviderResolver, policy resilience.Policy) *LLMTopicSelector {
	return &LLMTopicSelector{structuredCaller{providers: providers, policy: policy}}
}

// SelectGroupTopic returns one topic plus a direction per requested action
func (s *LLMTopicSelector) SelectGroupTopic(ctx context.Context, group GroupContext) (*TopicSelection, error) {
	actions := make([]string, len(group.Actions))
	for i, a := range group.Actions {
		actions[i] = string(a)
	}

	sel, _, err := pipeline.GenerateStructured[TopicSelection](ctx, s.generator(ctx, "", ""), pipeline.StructuredCall{
		Label:      "select_group_topic",
		PromptFile: prompts.AutonomousFile,
		PromptKey:  prompts.KeySelectGroupTopic,
		Schema:     schemas.TopicSelection,
		SchemaText: llm.TopicSelectionSchema().Describe(),
		Data: map[string]string{
			"Group":    group.GroupID,
			"Actions":  strings.Join(actions, ", "),
			"Language": group.Language,
		},
		Temperature: 0.9,
	}, nil)
	if err != nil {
		return nil, err
	}
	return &sel, nil
}

// LLMRiskAnalyzer recommends scenarios from a user's recent activity
type LLMRiskAnalyzer struct {
	structuredCaller
	logger zerolog.Logger
}

// NewLLMRiskAnalyzer creates an analyzer using the default provider
func NewLLMRiskAnalyzer(providers pipeline.ProviderResolver, policy resilience.Policy, logger zerolog.Logger) *LLMRiskAnalyzer {
	return &LLMRiskAnalyzer{
		structuredCaller: structuredCaller{providers: providers, policy: policy},
		logger:           logger.With().Str("component", "risk_analyzer").Logger(),
	}
}

// Recommend returns a topic, difficulty and triggers for user
func (a *LLMRiskAnalyzer) Recommend(ctx context.Context, user *platform.User) (*RiskProfile, error) {
	profile, _, err := pipeline.GenerateStructured[RiskProfile](ctx, a.generator(ctx, "", ""), pipeline.StructuredCall{
		Label:      "analyze_user_risk",
		PromptFile: prompts.AutonomousFile,
		PromptKey:  prompts.KeyAnalyzeUserRisk,
		Schema:     schemas.RiskProfile,
		SchemaText: llm.RiskProfileSchema().Describe(),
		Data: map[string]string{
			"User":     describeUser(user),
			"Activity": a.describeActivity(user.RecentActivity),
		},
		Temperature: 0.4,
	}, nil)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func describeUser(u *platform.User) string {
	lines := []string{"Name: " + u.FullName()}
	if u.Department != "" {
		lines = append(lines, "Department: "+u.Department)
	}
	if u.Language != "" {
		lines = append(lines, "Language: "+u.Language)
	}
	return strings.Join(lines, "\n")
}

// describeActivity renders the timeline as quoted, sanitized data
func (a *LLMRiskAnalyzer) describeActivity(entries []platform.Activity) string {
	if len(entries) == 0 {
		return "(no recent activity)"
	}
	if len(entries) > maxActivityEntries {
		entries = entries[:maxActivityEntries]
	}

	var sb strings.Builder
	for _, e := range entries {
		sb.WriteString(fmt.Sprintf("- %s %s: %s\n", e.OccurredAt.Format("2006-01-02"), e.Type, e.Description))
	}
	return validation.SanitizeExternal(a.logger, sb.String(), "USER ACTIVITY")
}

// LLMTrainingGenerator writes training modules with a structured generation call
type LLMTrainingGenerator struct {
	structuredCaller
}

// NewLLMTrainingGenerator creates a training generator
func NewLLMTrainingGenerator(providers pipeline.ProviderResolver, policy resilience.Policy) *LLMTrainingGenerator {
	return &LLMTrainingGenerator{structuredCaller{providers: providers, policy: policy}}
}

// GenerateTraining returns a module whose quiz answers point into their options
func (g *LLMTrainingGenerator) GenerateTraining(ctx context.Context, req TrainingRequest) (*TrainingModule, error) {
	gen := g.generator(ctx, req.Vendor, req.Model)
	module, _, err := pipeline.GenerateStructured[TrainingModule](ctx, gen, pipeline.StructuredCall{
		Label:      "generate_training_module",
		PromptFile: prompts.AutonomousFile,
		PromptKey:  prompts.KeyGenerateTraining,
		Schema:     schemas.TrainingModule,
		SchemaText: llm.TrainingModuleSchema().Describe(),
		Data: map[string]string{
			"Topic":      req.Topic,
			"Difficulty": string(req.Difficulty),
			"Language":   req.Language,
			"Audience":   req.Audience,
		},
		Temperature: 0.6,
	}, checkTrainingModule)
	if err != nil {
		return nil, err
	}

	sel := gen.Selection()
	module.Vendor, module.Model = string(sel.Vendor), sel.Model
	return &module, nil
}

func checkTrainingModule(m TrainingModule) []string {
	var violations []string
	for i, q := range m.Quiz {
		if q.Answer < 0 || q.Answer >= len(q.Options) {
			violations = append(violations, fmt.Sprintf("quiz[%d].answer must index into its %d options", i, len(q.Options)))
		}
	}
	found := &types.Violations{}
	for i, s := range m.Sections {
		found.Violations = append(found.Violations,
			validation.CheckForbiddenPhrases("training", fmt.Sprintf("sections[%d].body", i), s.Body, validation.DefaultForbiddenPhrases)...)
	}
	return append(violations, found.Messages()...)
}
