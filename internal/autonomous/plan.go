package autonomous

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jonathan/phish-simulator/internal/artifacts"
	"github.com/jonathan/phish-simulator/internal/types"
)

// plan is the resolved target context shared by every action of a run
type plan struct {
	topic      string
	difficulty types.Difficulty
	language   string
	profile    *types.TargetProfile
	audience   string
	prompts    *TopicSelection
}

// topicFor combines the shared topic with the action's own direction
func (p *plan) topicFor(a Action) string {
	topic := p.topic
	if p.prompts != nil {
		if direction := strings.TrimSpace(p.prompts.PromptFor(a)); direction != "" {
			topic = fmt.Sprintf("%s. %s", p.topic, direction)
		}
	}
	return truncateRunes(topic, maxTopicRunes)
}

func (s *Service) resolveTarget(ctx context.Context, req Request) (*plan, error) {
	if req.Target.GroupID != "" {
		return s.resolveGroup(ctx, req)
	}
	return s.resolveUser(ctx, req)
}

func (s *Service) resolveGroup(ctx context.Context, req Request) (*plan, error) {
	if s.deps.Topics == nil {
		return nil, &TargetError{Target: req.Target, Step: "select_topic", Cause: errors.New("no topic selector configured")}
	}

	language := firstNonEmpty(req.Language, DefaultLanguage)
	sel, err := s.deps.Topics.SelectGroupTopic(ctx, GroupContext{
		GroupID:  req.Target.GroupID,
		Actions:  req.Actions,
		Language: language,
	})
	if err != nil {
		return nil, &TargetError{Target: req.Target, Step: "select_topic", Cause: err}
	}
	if strings.TrimSpace(sel.Topic) == "" {
		return nil, &TargetError{Target: req.Target, Step: "select_topic", Cause: errors.New("topic selection returned no topic")}
	}

	return &plan{
		topic:      strings.TrimSpace(sel.Topic),
		difficulty: pickDifficulty(req.Difficulty, sel.Difficulty),
		language:   language,
		audience:   "Employees in group " + req.Target.GroupID,
		prompts:    sel,
	}, nil
}

func (s *Service) resolveUser(ctx context.Context, req Request) (*plan, error) {
	if s.deps.Users == nil || s.deps.Risk == nil {
		return nil, &TargetError{Target: req.Target, Step: "lookup_user", Cause: errors.New("user lookup is not configured")}
	}

	user, err := s.deps.Users.LookupUser(ctx, req.Target.UserID)
	if err != nil {
		return nil, &TargetError{Target: req.Target, Step: "lookup_user", Cause: err}
	}

	risk, err := s.deps.Risk.Recommend(ctx, user)
	if err != nil {
		return nil, &TargetError{Target: req.Target, Step: "analyze_risk", Cause: err}
	}
	if strings.TrimSpace(risk.Topic) == "" {
		return nil, &TargetError{Target: req.Target, Step: "analyze_risk", Cause: errors.New("risk analysis returned no topic")}
	}

	audience := "One employee"
	if user.Department != "" {
		audience = "An employee in " + user.Department
	}

	return &plan{
		topic:      strings.TrimSpace(risk.Topic),
		difficulty: pickDifficulty(req.Difficulty, risk.Difficulty),
		language:   firstNonEmpty(req.Language, strings.ToLower(user.Language), DefaultLanguage),
		audience:   audience,
		profile: &types.TargetProfile{
			Name:            user.FullName(),
			Department:      user.Department,
			Triggers:        risk.Triggers,
			Vulnerabilities: risk.Vulnerabilities,
		},
	}, nil
}

// generated is the content one action uploads
type generated struct {
	ArtifactID  string
	Name        string
	Description string
	Language    string
	Difficulty  types.Difficulty
	Body        any
}

// simulationBody is the uploaded form of a phishing or smishing artifact
type simulationBody struct {
	Analysis    *types.ScenarioAnalysis `json:"scenario_analysis"`
	Message     *types.MessagePart      `json:"message,omitempty"`
	LandingPage *types.LandingPage      `json:"landing_page,omitempty"`
}

func (s *Service) generate(ctx context.Context, req Request, p *plan, action Action) (*generated, error) {
	if action == ActionTraining {
		return s.generateTraining(ctx, req, p)
	}

	kind := types.KindEmail
	if action == ActionSmishing {
		kind = types.KindSMS
	}
	res, err := s.deps.Generator.Run(ctx, types.GenerationRequest{
		Topic:              p.topicFor(action),
		Kind:               kind,
		Difficulty:         p.difficulty,
		Profile:            p.profile,
		Language:           p.language,
		IncludeMessage:     true,
		IncludeLandingPage: true,
		Vendor:             req.Vendor,
		Model:              req.Model,
		Organization:       req.Organization,
	})
	if err != nil {
		return nil, err
	}

	name, description := p.topic, ""
	if res.Analysis != nil {
		name = firstNonEmpty(res.Analysis.Scenario, p.topic)
		description = firstNonEmpty(res.Analysis.Description, res.Analysis.Category)
	}
	return &generated{
		ArtifactID:  res.ArtifactID,
		Name:        name,
		Description: description,
		Language:    p.language,
		Difficulty:  p.difficulty,
		Body: simulationBody{
			Analysis:    res.Analysis,
			Message:     res.Message,
			LandingPage: res.LandingPage,
		},
	}, nil
}

// TrainingKeyPrefix namespaces training modules in the store
const TrainingKeyPrefix = "training"

func (s *Service) generateTraining(ctx context.Context, req Request, p *plan) (*generated, error) {
	if s.deps.Training == nil || s.deps.Repository == nil {
		return nil, errors.New("training generation is not configured")
	}

	module, err := s.deps.Training.GenerateTraining(ctx, TrainingRequest{
		Topic:      p.topicFor(ActionTraining),
		Difficulty: p.difficulty,
		Language:   p.language,
		Audience:   p.audience,
		Vendor:     req.Vendor,
		Model:      req.Model,
	})
	if err != nil {
		return nil, err
	}
	module.ID = s.newID()
	module.Topic = p.topic
	module.Difficulty = p.difficulty
	module.Language = p.language

	keys, err := s.deps.Repository.SaveRecord(ctx, TrainingKeyPrefix, module.ID, module)
	if err != nil {
		return nil, err
	}
	if s.deps.Guard != nil && !s.deps.Guard.Wait(ctx, keys, s.opts.ConsistencyTimeout, s.opts.PollInterval) {
		zerolog.Ctx(ctx).Warn().Str("artifact_id", module.ID).Msg("training module not visible before consistency deadline")
	}

	return &generated{
		ArtifactID:  module.ID,
		Name:        module.Title,
		Description: module.Summary,
		Language:    p.language,
		Difficulty:  p.difficulty,
		Body:        module,
	}, nil
}

// LoadTraining reads a persisted training module
func (s *Service) LoadTraining(ctx context.Context, id string) (*TrainingModule, error) {
	if s.deps.Repository == nil {
		return nil, errors.New("training storage is not configured")
	}
	var module TrainingModule
	if err := s.deps.Repository.LoadRecord(ctx, TrainingKeyPrefix, id, &module); err != nil {
		return nil, err
	}
	return &module, nil
}

// TrainingKey is the store key of a training module
func TrainingKey(id string) string {
	return fmt.Sprintf("%s:%s:%s", TrainingKeyPrefix, id, artifacts.PartBase)
}

func pickDifficulty(override types.Difficulty, recommended string) types.Difficulty {
	if override != "" {
		return override
	}
	if d, err := types.ParseDifficulty(recommended); err == nil {
		return d
	}
	return types.DifficultyMedium
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
