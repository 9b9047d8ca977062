package pipeline

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/phish-simulator/internal/artifacts"
	"github.com/jonathan/phish-simulator/internal/consistency"
	"github.com/jonathan/phish-simulator/internal/kvstore"
	"github.com/jonathan/phish-simulator/internal/llm"
	"github.com/jonathan/phish-simulator/internal/resilience"
)

const (
	analysisClickOnly = `{"scenario":"Password Reset","category":"Credential Harvesting",
"psychological_triggers":["urgency","authority"],"red_flags":["generic greeting","mismatched sender domain"],
"sender":{"name":"IT Service Desk","address":"it-support@example.com"},"tone":"urgent","method":"Click-Only"}`

	analysisDataSubmission = `{"scenario":"Payroll Update","category":"Credential Harvesting",
"psychological_triggers":["fear of missing pay"],"red_flags":["unexpected request"],
"sender":{"name":"HR Payroll"},"tone":"formal","method":"Data-Submission","industry":"Human Resources"}`

	validEmail = `{"subject":"Action required: reset your password",
"template":"<html><body><p>Hi {FIRSTNAME},</p><p><a href=\"{PHISHINGURL}\">Reset password</a></p></body></html>"}`

	emailMissingURL = `{"subject":"Action required","template":"<p>Hi {FIRSTNAME}, please reset your password.</p>"}`

	validSMS = `{"messages":["IT: your password expires today. Reset at {PHISHINGURL}"]}`

	clickOnlyLanding = "```json\n" + `{"name":"Password Reset","pages":[{"type":"landing",
"template":"<html><body><h1>Password reset</h1><img src=\"https://cdn.example.com/logo.png\"></body></html>"}]}` + "\n```"

	landingWithoutForm = `{"name":"Payroll","pages":[{"type":"info","template":"<div><p>Update your details</p></div>"}]}`

	landingWithForm = `{"name":"Payroll","pages":[
{"type":"form","template":"<div><form action=\"{PHISHINGURL}\"><input name=\"email\"><button>Submit</button></form></div>"},
{"type":"success","template":"<div><p>Thank you</p></div>"}]}`
)

// step identifies which stage a prompt belongs to
type step string

const (
	stepAnalyze step = "analyze"
	stepEmail   step = "email"
	stepSMS     step = "sms"
	stepLanding step = "landing"
)

func stepOf(prompt string) step {
	switch {
	case strings.HasPrefix(prompt, "Design a simulated"):
		return stepAnalyze
	case strings.HasPrefix(prompt, "Write the phishing simulation email"):
		return stepEmail
	case strings.HasPrefix(prompt, "Write the smishing"):
		return stepSMS
	case strings.HasPrefix(prompt, "Write the landing page"):
		return stepLanding
	}
	return ""
}

type reply struct {
	text string
	err  error
}

// scriptedClient answers each stage from a queue; the last reply repeats
type scriptedClient struct {
	mu      sync.Mutex
	replies map[step][]reply
	prompts map[step][]string
}

func newScriptedClient(replies map[step][]reply) *scriptedClient {
	return &scriptedClient{replies: replies, prompts: map[step][]string{}}
}

func (c *scriptedClient) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := stepOf(req.Prompt)
	c.prompts[s] = append(c.prompts[s], req.Prompt)

	queue := c.replies[s]
	if len(queue) == 0 {
		return nil, &llm.BackendError{Vendor: llm.VendorOpenAI, StatusCode: 400, Message: "unscripted prompt"}
	}
	r := queue[0]
	if len(queue) > 1 {
		c.replies[s] = queue[1:]
	}
	if r.err != nil {
		return nil, r.err
	}
	return &llm.Response{Text: r.text, Model: req.Model}, nil
}

func (c *scriptedClient) Vendor() llm.Vendor { return llm.VendorOpenAI }

func (c *scriptedClient) Close() error { return nil }

func (c *scriptedClient) calls(s step) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.prompts[s]...)
}

type staticResolver struct {
	client llm.Client
}

func (r staticResolver) Resolve(_ context.Context, _, _ string) llm.Selection {
	return llm.Selection{Vendor: llm.VendorOpenAI, Model: "gpt-4o-mini", Client: r.client}
}

func fastRetry() resilience.Policy {
	return resilience.Policy{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
		CallTimeout:  time.Second,
	}
}

type harness struct {
	pipeline *Pipeline
	client   *scriptedClient
	store    *kvstore.MemoryStore
	repo     *artifacts.Repository
}

func newHarness(t *testing.T, replies map[step][]reply, lag time.Duration, mutate func(*Deps, *Options)) *harness {
	t.Helper()

	client := newScriptedClient(replies)
	store := kvstore.NewMemoryStore(lag)
	logger := zerolog.Nop()
	repo := artifacts.NewRepository(store, logger)

	deps := Deps{
		Providers:  staticResolver{client: client},
		Repository: repo,
		Guard:      consistency.NewGuard(store, logger),
		Logger:     logger,
	}
	opts := Options{
		Retry:              fastRetry(),
		ConsistencyTimeout: time.Second,
		PollInterval:       10 * time.Millisecond,
	}
	if mutate != nil {
		mutate(&deps, &opts)
	}

	p, err := New(deps, opts)
	require.NoError(t, err)
	return &harness{pipeline: p, client: client, store: store, repo: repo}
}

func respond(text string) reply { return reply{text: text} }
