package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"lead-responder/internal/analysis/domain"
	catalogdomain "lead-responder/internal/catalog/domain"
	"lead-responder/pkg/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

// scriptedGenerator replays canned replies in order and records prompts.
type scriptedGenerator struct {
	replies []string
	errs    []error
	prompts []string
}

func (g *scriptedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	i := len(g.prompts)
	g.prompts = append(g.prompts, prompt)
	var reply string
	var err error
	if i < len(g.replies) {
		reply = g.replies[i]
	}
	if i < len(g.errs) {
		err = g.errs[i]
	}
	return reply, err
}

func testPolicy() retry.Policy {
	return retry.Policy{MaxRetries: 2, InitialDelay: time.Millisecond}
}

func TestAnalyze_ParsesModelJSON(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{
		"Sure! Here is the analysis:\n```json\n" +
			`{"productSearch":{"productTitle":"Blue Lamp","category":"lighting"},"summary":"Asks if {the} blue lamp is in stock","guardrail":{"triggered":false,"reason":""},"sentiment":"Positive"}` +
			"\n```",
	}}
	a := NewAnalyzer(gen, testPolicy(), "https://shop.example.com")

	res := a.Analyze(context.Background(), "Do you have the blue lamp?")

	assert.Equal(t, "Blue Lamp", res.ProductSearch.ProductTitle)
	assert.Equal(t, "lighting", res.ProductSearch.Category)
	assert.Equal(t, "Asks if {the} blue lamp is in stock", res.Summary)
	assert.False(t, res.Guardrail.Triggered)
	assert.Equal(t, domain.SentimentPositive, res.Sentiment)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "Do you have the blue lamp?")
}

func TestAnalyze_Guardrail(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{
		`{"productSearch":{"productTitle":null,"category":null},"summary":"Threatens to sue","guardrail":{"triggered":true,"reason":"legal threat"},"sentiment":"negative"}`,
	}}
	a := NewAnalyzer(gen, testPolicy(), "")

	res := a.Analyze(context.Background(), "I will sue you")

	assert.True(t, res.Guardrail.Triggered)
	assert.Equal(t, "legal threat", res.Guardrail.Reason)
	assert.Equal(t, "", res.ProductSearch.ProductTitle)
	assert.Equal(t, domain.SentimentNegative, res.Sentiment)
}

func TestAnalyze_FallbackSummaryEllipsisOnlyWhenCut(t *testing.T) {
	longBody := strings.Repeat("x", 150)

	tests := []struct {
		name    string
		gen     *scriptedGenerator
		body    string
		summary string
	}{
		{
			name:    "transport error",
			gen:     &scriptedGenerator{errs: []error{errors.New("connection refused")}},
			body:    "short body",
			summary: "short body",
		},
		{
			name:    "no json at all, long body is cut",
			gen:     &scriptedGenerator{replies: []string{"I cannot help with that."}},
			body:    longBody,
			summary: strings.Repeat("x", 100) + "...",
		},
		{
			name:    "body of exactly the limit is not cut",
			gen:     &scriptedGenerator{replies: []string{"no json"}},
			body:    strings.Repeat("y", 100),
			summary: strings.Repeat("y", 100),
		},
		{
			name:    "unbalanced json",
			gen:     &scriptedGenerator{replies: []string{`{"summary": "oops"`}},
			body:    "short body",
			summary: "short body",
		},
		{
			name:    "wrong types",
			gen:     &scriptedGenerator{replies: []string{`{"guardrail": "yes"}`}},
			body:    "short body",
			summary: "short body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewAnalyzer(tt.gen, testPolicy(), "").Analyze(context.Background(), tt.body)

			assert.Equal(t, tt.summary, res.Summary)
			assert.False(t, res.Guardrail.Triggered)
			assert.Equal(t, domain.SentimentNeutral, res.Sentiment)
			assert.Empty(t, res.ProductSearch.ProductTitle)
			assert.Empty(t, res.ProductSearch.Category)
		})
	}
}

func TestAnalyze_RetriesRateLimit(t *testing.T) {
	gen := &scriptedGenerator{
		errs:    []error{&googleapi.Error{Code: 429}, nil},
		replies: []string{"", `{"summary":"ok","sentiment":"neutral"}`},
	}

	res := NewAnalyzer(gen, testPolicy(), "").Analyze(context.Background(), "body")

	assert.Equal(t, "ok", res.Summary)
	assert.Len(t, gen.prompts, 2)
}

func TestFirstJSONObject(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{`{"a":1}`, `{"a":1}`, true},
		{`noise {"a":{"b":"}"}} trailing {"c":2}`, `{"a":{"b":"}"}}`, true},
		{`{"a":"quote \" and { brace"}`, `{"a":"quote \" and { brace"}`, true},
		{`{ broken {"ok":true}`, `{"ok":true}`, true},
		{`{"never": "closed"`, "", false},
		{`no braces`, "", false},
	}
	for _, tt := range tests {
		got, ok := firstJSONObject(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestCompose(t *testing.T) {
	exact := &catalogdomain.MatchResult{Exact: &catalogdomain.Product{
		Title: "Blue Lamp", PriceCents: 4900, Currency: "usd", Slug: "blue-lamp", InStock: true,
	}}
	alternatives := &catalogdomain.MatchResult{Alternatives: []catalogdomain.Product{
		{Title: "Pine Chair", PriceCents: 7000, Slug: "pine-chair"},
		{Title: "Oak Table", PriceCents: 25000, Slug: "oak-table"},
	}}

	tests := []struct {
		name     string
		match    *catalogdomain.MatchResult
		contains []string
	}{
		{"exact", exact, []string{"Blue Lamp", "49.00 USD", "https://shop.example.com/products/blue-lamp"}},
		{"alternatives", alternatives, []string{"Pine Chair", "https://shop.example.com/products/pine-chair", "Oak Table", "250.00 USD"}},
		{"browse", nil, []string{"browse our collection at https://shop.example.com"}},
		{"empty match browses", &catalogdomain.MatchResult{}, []string{"browse our collection"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &scriptedGenerator{replies: []string{"  Hello Jane!  "}}
			a := NewAnalyzer(gen, testPolicy(), "https://shop.example.com/")

			reply, err := a.Compose(context.Background(), "Do you have lamps?", "Store: Lamp Shop", tt.match)

			require.NoError(t, err)
			assert.Equal(t, "Hello Jane!", reply)
			require.Len(t, gen.prompts, 1)
			assert.Contains(t, gen.prompts[0], "Store: Lamp Shop")
			assert.Contains(t, gen.prompts[0], "Do you have lamps?")
			assert.Contains(t, gen.prompts[0], "Never invent product facts")
			for _, want := range tt.contains {
				assert.Contains(t, gen.prompts[0], want)
			}
		})
	}
}

func TestCompose_Errors(t *testing.T) {
	a := NewAnalyzer(&scriptedGenerator{replies: []string{"   "}}, testPolicy(), "")
	_, err := a.Compose(context.Background(), "hi", "", nil)
	assert.ErrorIs(t, err, domain.ErrEmptyReply)

	upstream := errors.New("model offline")
	a = NewAnalyzer(&scriptedGenerator{errs: []error{upstream}}, testPolicy(), "")
	_, err = a.Compose(context.Background(), "hi", "", nil)
	assert.ErrorIs(t, err, upstream)
}

func TestSummarize(t *testing.T) {
	a := NewAnalyzer(&scriptedGenerator{replies: []string{" Customer wants a lamp. "}}, testPolicy(), "")
	assert.Equal(t, "Customer wants a lamp.", a.Summarize(context.Background(), "long text"))

	long := strings.Repeat("y", 250)
	a = NewAnalyzer(&scriptedGenerator{errs: []error{errors.New("down")}}, testPolicy(), "")
	assert.Equal(t, strings.Repeat("y", 200)+"...", a.Summarize(context.Background(), long))

	a = NewAnalyzer(&scriptedGenerator{replies: []string{""}}, testPolicy(), "")
	assert.Equal(t, "short", a.Summarize(context.Background(), "short"))
}
