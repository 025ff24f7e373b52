package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"lead-responder/internal/analysis/domain"
	catalogdomain "lead-responder/internal/catalog/domain"
	"lead-responder/pkg/ai"
	"lead-responder/pkg/retry"
)

const (
	fallbackSummaryLength = 100
	maxSummaryLength      = 200
	// maxPromptBody bounds how much of an email is sent to the model.
	maxPromptBody = 8000
)

// Analyzer is the text intelligence adapter: every model call of the
// responder goes through it.
type Analyzer struct {
	gen          ai.TextGenerator
	policy       retry.Policy
	storeBaseURL string
}

func NewAnalyzer(gen ai.TextGenerator, policy retry.Policy, storeBaseURL string) *Analyzer {
	return &Analyzer{
		gen:          gen,
		policy:       policy,
		storeBaseURL: strings.TrimRight(storeBaseURL, "/"),
	}
}

func (a *Analyzer) generate(ctx context.Context, prompt string) (string, error) {
	return retry.Do(ctx, a.policy, func() (string, error) {
		return a.gen.Generate(ctx, prompt)
	})
}

const analyzePrompt = `You are the inbox assistant of an online store. Read the customer email below and reply with ONLY a JSON object, no prose and no code fences, in exactly this shape:
{"productSearch":{"productTitle":"<product the customer asks about, or null>","category":"<product category, or null>"},"summary":"<one sentence, under 200 characters>","guardrail":{"triggered":<true or false>,"reason":"<short reason, or empty>"},"sentiment":"<positive|neutral|negative>"}

Rules:
- productTitle and category are short search keywords, not sentences. Use null when unsure.
- Set guardrail.triggered to true when the email threatens legal action, demands a refund or chargeback, reports a scam or fraud, or the customer is clearly angry or abusive.

EMAIL:
%s`

// Analyze never fails: transport errors and unusable model output both
// produce the fallback result.
func (a *Analyzer) Analyze(ctx context.Context, body string) domain.AnalysisResult {
	raw, err := a.generate(ctx, fmt.Sprintf(analyzePrompt, clip(body, maxPromptBody)))
	if err != nil {
		log.Printf("[AI] Analyze failed, using fallback: %v", err)
		return fallbackAnalysis(body)
	}

	result, ok := parseAnalysis(raw, body)
	if !ok {
		log.Printf("[AI] Analyze returned unparsable output, using fallback")
		return fallbackAnalysis(body)
	}
	return result
}

type rawAnalysis struct {
	ProductSearch *struct {
		ProductTitle *string `json:"productTitle"`
		Category     *string `json:"category"`
	} `json:"productSearch"`
	Summary   *string `json:"summary"`
	Guardrail *struct {
		Triggered bool   `json:"triggered"`
		Reason    string `json:"reason"`
	} `json:"guardrail"`
	Sentiment string `json:"sentiment"`
}

// parseAnalysis decodes the first JSON object in raw into a complete
// result, filling anything missing from the fallback.
func parseAnalysis(raw, body string) (domain.AnalysisResult, bool) {
	span, ok := firstJSONObject(raw)
	if !ok {
		return domain.AnalysisResult{}, false
	}

	var parsed rawAnalysis
	if err := json.Unmarshal([]byte(span), &parsed); err != nil {
		return domain.AnalysisResult{}, false
	}

	result := fallbackAnalysis(body)
	if ps := parsed.ProductSearch; ps != nil {
		if ps.ProductTitle != nil {
			result.ProductSearch.ProductTitle = strings.TrimSpace(*ps.ProductTitle)
		}
		if ps.Category != nil {
			result.ProductSearch.Category = strings.TrimSpace(*ps.Category)
		}
	}
	if parsed.Summary != nil && strings.TrimSpace(*parsed.Summary) != "" {
		result.Summary = truncate(strings.TrimSpace(*parsed.Summary), maxSummaryLength)
	}
	if g := parsed.Guardrail; g != nil {
		result.Guardrail = domain.Guardrail{Triggered: g.Triggered, Reason: strings.TrimSpace(g.Reason)}
	}
	switch s := domain.Sentiment(strings.ToLower(strings.TrimSpace(parsed.Sentiment))); s {
	case domain.SentimentPositive, domain.SentimentNeutral, domain.SentimentNegative:
		result.Sentiment = s
	}
	return result, true
}

// fallbackAnalysis summarizes with the body itself. The ellipsis marks a
// cut, so bodies within the limit are returned whole.
func fallbackAnalysis(body string) domain.AnalysisResult {
	return domain.AnalysisResult{
		Summary:   truncate(strings.TrimSpace(body), fallbackSummaryLength),
		Sentiment: domain.SentimentNeutral,
	}
}

// firstJSONObject returns the first balanced {...} span in s. Braces
// inside JSON strings are ignored.
func firstJSONObject(s string) (string, bool) {
	for start := strings.IndexByte(s, '{'); start >= 0; {
		depth := 0
		inString := false
		escaped := false
		for i := start; i < len(s); i++ {
			c := s[i]
			switch {
			case escaped:
				escaped = false
			case inString && c == '\\':
				escaped = true
			case c == '"':
				inString = !inString
			case inString:
			case c == '{':
				depth++
			case c == '}':
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

const composePrompt = `You are a friendly sales assistant writing an email reply on behalf of the store below.

STORE:
%s

CUSTOMER EMAIL:
%s

%s

Instructions:
- Answer the customer's question directly and warmly in plain text, without a subject line.
- Only mention products, prices and links listed above. Never invent product facts, stock levels, discounts or policies.
- Keep it under 150 words and end with the store signature if one is given.`

// Compose drafts a reply to the latest customer message.
func (a *Analyzer) Compose(ctx context.Context, latestBody, storeContext string, match *catalogdomain.MatchResult) (string, error) {
	prompt := fmt.Sprintf(composePrompt, storeContext, clip(latestBody, maxPromptBody), a.productSection(match))

	reply, err := a.generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("unable to compose reply: %w", err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", domain.ErrEmptyReply
	}
	return reply, nil
}

func (a *Analyzer) productSection(match *catalogdomain.MatchResult) string {
	var sb strings.Builder
	switch {
	case match != nil && match.Exact != nil:
		p := match.Exact
		sb.WriteString("MATCHING PRODUCT:\n")
		fmt.Fprintf(&sb, "- %s, %s, %s", p.Title, p.FormatPrice(), p.URL(a.storeBaseURL))
		if !p.InStock {
			sb.WriteString(" (currently out of stock)")
		}
	case match != nil && len(match.Alternatives) > 0:
		sb.WriteString("We could not find the exact item. Suggest these instead:\n")
		for i, p := range match.Alternatives {
			if i > 0 {
				sb.WriteString("\n")
			}
			fmt.Fprintf(&sb, "- %s, %s, %s", p.Title, p.FormatPrice(), p.URL(a.storeBaseURL))
		}
	default:
		fmt.Fprintf(&sb, "No specific product matched. Invite the customer to browse our collection at %s.", a.storeBaseURL)
	}
	return sb.String()
}

const summarizePrompt = `Summarize the following email in one sentence under 200 characters. Output only the summary.

%s`

// Summarize falls back to a truncated copy of text when the model fails.
func (a *Analyzer) Summarize(ctx context.Context, text string) string {
	summary, err := a.generate(ctx, fmt.Sprintf(summarizePrompt, clip(text, maxPromptBody)))
	summary = strings.TrimSpace(summary)
	if err != nil || summary == "" {
		if err != nil {
			log.Printf("[AI] Summarize failed, using truncation: %v", err)
		}
		return truncate(strings.TrimSpace(text), maxSummaryLength)
	}
	return truncate(summary, maxSummaryLength)
}

// truncate cuts s to n runes and marks the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// clip cuts s to n runes without a marker.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
