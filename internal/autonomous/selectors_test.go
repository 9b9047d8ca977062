package autonomous

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/phish-simulator/internal/llm"
	"github.com/jonathan/phish-simulator/internal/platform"
	"github.com/jonathan/phish-simulator/internal/resilience"
	"github.com/jonathan/phish-simulator/internal/types"
)

// queuedClient returns replies in order; the last one repeats
type queuedClient struct {
	mu      sync.Mutex
	replies []string
	prompts []string
	models  []string
}

func (c *queuedClient) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts = append(c.prompts, req.Prompt)
	c.models = append(c.models, req.Model)
	text := c.replies[0]
	if len(c.replies) > 1 {
		c.replies = c.replies[1:]
	}
	return &llm.Response{Text: text, Model: req.Model}, nil
}

func (c *queuedClient) Vendor() llm.Vendor { return llm.VendorOpenAI }

func (c *queuedClient) Close() error { return nil }

// hintResolver honors model hints and defaults to gpt-4o-mini
type hintResolver struct {
	client llm.Client
}

func (r hintResolver) Resolve(_ context.Context, _, model string) llm.Selection {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return llm.Selection{Vendor: llm.VendorOpenAI, Model: model, Client: r.client}
}

func quickPolicy() resilience.Policy {
	return resilience.Policy{MaxAttempts: 1, CallTimeout: time.Second}
}

func TestLLMTopicSelector(t *testing.T) {
	client := &queuedClient{replies: []string{
		"```json\n" + `{"topic":"Benefits enrollment","difficulty":"medium","phishing_prompt":"HR portal reminder"}` + "\n```",
	}}
	selector := NewLLMTopicSelector(hintResolver{client: client}, quickPolicy())

	sel, err := selector.SelectGroupTopic(context.Background(), GroupContext{
		GroupID:  "g-9",
		Actions:  []Action{ActionPhishing, ActionTraining},
		Language: "en-gb",
	})
	require.NoError(t, err)
	assert.Equal(t, "Benefits enrollment", sel.Topic)
	assert.Equal(t, "HR portal reminder", sel.PromptFor(ActionPhishing))
	assert.Empty(t, sel.PromptFor(ActionTraining))

	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "Group: g-9")
	assert.Contains(t, client.prompts[0], "Requested actions: phishing, training")
	assert.Contains(t, client.prompts[0], `"topic": "string", (required)`)
}

func TestLLMRiskAnalyzer(t *testing.T) {
	client := &queuedClient{replies: []string{
		`{"topic":"Parcel delivery failure","difficulty":"easy","triggers":["urgency"]}`,
	}}
	analyzer := NewLLMRiskAnalyzer(hintResolver{client: client}, quickPolicy(), zerolog.Nop())

	activity := make([]platform.Activity, 30)
	for i := range activity {
		activity[i] = platform.Activity{Type: "clicked", Description: "simulation link", OccurredAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	}
	profile, err := analyzer.Recommend(context.Background(), &platform.User{
		FirstName:      "Sam",
		LastName:       "Okafor",
		Department:     "Logistics",
		RecentActivity: activity,
	})
	require.NoError(t, err)
	assert.Equal(t, "Parcel delivery failure", profile.Topic)
	assert.Equal(t, []string{"urgency"}, profile.Triggers)

	require.Len(t, client.prompts, 1)
	prompt := client.prompts[0]
	assert.Contains(t, prompt, "Name: Sam Okafor")
	assert.Contains(t, prompt, "Department: Logistics")
	assert.Equal(t, maxActivityEntries, strings.Count(prompt, "2026-03-01 clicked"))
}

func TestLLMRiskAnalyzer_NoActivity(t *testing.T) {
	client := &queuedClient{replies: []string{`{"topic":"Invoice fraud","difficulty":"hard","triggers":[]}`}}
	analyzer := NewLLMRiskAnalyzer(hintResolver{client: client}, quickPolicy(), zerolog.Nop())

	_, err := analyzer.Recommend(context.Background(), &platform.User{FirstName: "Ana"})
	require.NoError(t, err)
	assert.Contains(t, client.prompts[0], "(no recent activity)")
}

func TestLLMTrainingGenerator(t *testing.T) {
	badQuiz := `{"title":"Spot the fake invoice","summary":"Invoice fraud basics",
"sections":[{"heading":"Red flags","body":"Unexpected payment changes."}],
"quiz":[{"question":"What do you do?","options":["Pay","Call the supplier"],"answer":2}]}`
	goodQuiz := strings.Replace(badQuiz, `"answer":2`, `"answer":1`, 1)

	client := &queuedClient{replies: []string{badQuiz, goodQuiz}}
	gen := NewLLMTrainingGenerator(hintResolver{client: client}, quickPolicy())

	module, err := gen.GenerateTraining(context.Background(), TrainingRequest{
		Topic:      "Invoice fraud",
		Difficulty: types.DifficultyEasy,
		Language:   "en-gb",
		Audience:   "Finance team",
		Model:      "gpt-4o",
	})
	require.NoError(t, err)
	assert.Equal(t, "Spot the fake invoice", module.Title)
	assert.Equal(t, 1, module.Quiz[0].Answer)
	assert.Equal(t, "openai", module.Vendor)
	assert.Equal(t, "gpt-4o", module.Model)

	require.Len(t, client.prompts, 2, "one escalation for the out-of-range answer")
	assert.Contains(t, client.prompts[1], "quiz[0].answer must index into its 2 options")
	assert.Equal(t, []string{"gpt-4o", "gpt-4o"}, client.models)
}

func TestCheckTrainingModule(t *testing.T) {
	tests := []struct {
		name   string
		module TrainingModule
		want   int
	}{
		{
			name: "valid",
			module: TrainingModule{
				Sections: []TrainingSection{{Heading: "h", Body: "Report suspicious mail."}},
				Quiz:     []QuizQuestion{{Options: []string{"a", "b"}, Answer: 0}},
			},
		},
		{
			name:   "negative answer",
			module: TrainingModule{Quiz: []QuizQuestion{{Options: []string{"a", "b"}, Answer: -1}}},
			want:   1,
		},
		{
			name:   "forbidden phrase in body",
			module: TrainingModule{Sections: []TrainingSection{{Heading: "h", Body: "Confirm your routing number here."}}},
			want:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, checkTrainingModule(tt.module), tt.want)
		})
	}
}
