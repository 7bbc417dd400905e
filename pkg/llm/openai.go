package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"

	"github.com/recall-hq/recall/pkg/types"
)

const defaultModel = "gpt-4o-mini"

const classifyPrompt = `You route questions about a user's personal data to evidence sources.
Sources: mail (email), calendar (events), social (social feeds, agent-scraped), messaging (chat apps, agent-scraped).
Respond with JSON only:
{"sources": ["mail"], "intent": "lookup|summarize|count", "per_source": {"mail": {"query": "provider search string", "keywords": ["k1", "k2"]}}}
Only include sources the question actually needs. Keywords ordered by importance.`

const synthesizePrompt = `You answer a question about the user's personal data using only the evidence provided.
Cite which source each fact came from. If the evidence does not answer the question, say so plainly.`

// Client implements Classifier and Synthesizer against an OpenAI-compatible API
type Client struct {
	api   openai.Client
	model string
}

func NewClient(cfg types.LLMConfig) *Client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")))
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	return &Client{
		api:   openai.NewClient(opts...),
		model: model,
	}
}

func (c *Client) Classify(ctx context.Context, query string) (*types.SourcePlan, error) {
	raw, err := c.complete(ctx, classifyPrompt, query)
	if err != nil {
		return nil, fmt.Errorf("classify query: %w", err)
	}

	var decoded struct {
		Sources   []string `json:"sources"`
		Intent    string   `json:"intent"`
		PerSource map[string]struct {
			Query    string   `json:"query"`
			Keywords []string `json:"keywords"`
		} `json:"per_source"`
	}
	if err := json.Unmarshal([]byte(stripFences(raw)), &decoded); err != nil {
		return nil, fmt.Errorf("parse classification: %w", err)
	}

	plan := &types.SourcePlan{
		PerSourceQuery: make(map[types.SourceKind]types.QueryParams),
		Intent:         types.QueryIntent(decoded.Intent),
	}
	if plan.Intent == "" {
		plan.Intent = types.IntentLookup
	}

	for _, name := range decoded.Sources {
		kind := types.SourceKind(name)
		if !types.ValidSources[kind] {
			log.Warn().Str("source", name).Msg("classifier returned unknown source, skipping")
			continue
		}
		plan.NeededSources = append(plan.NeededSources, kind)
		if ps, ok := decoded.PerSource[name]; ok {
			plan.PerSourceQuery[kind] = types.QueryParams{Query: ps.Query, Keywords: ps.Keywords}
		}
	}

	if len(plan.NeededSources) == 0 {
		return nil, fmt.Errorf("classifier selected no sources")
	}
	return plan, nil
}

func (c *Client) Synthesize(ctx context.Context, query string, hits []types.Hit, history []types.Message) (string, error) {
	var b strings.Builder
	if len(history) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, m := range history {
			fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
		}
		b.WriteString("\n")
	}

	b.WriteString("Evidence:\n")
	if len(hits) == 0 {
		b.WriteString("(none found)\n")
	}
	for i, h := range hits {
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, h.Source, h.Content)
	}

	fmt.Fprintf(&b, "\nQuestion: %s", query)

	answer, err := c.complete(ctx, synthesizePrompt, b.String())
	if err != nil {
		return "", fmt.Errorf("synthesize answer: %w", err)
	}
	return answer, nil
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion")
	}
	return resp.Choices[0].Message.Content, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}
