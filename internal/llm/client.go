package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/forkcast/pkg/models"
)

// CatalogReader is the read-only catalog view dry-run mode answers from.
type CatalogReader interface {
	// DistinctFoods returns up to n distinct normalized food names.
	DistinctFoods(ctx context.Context, n int) ([]string, error)
	// DietFor returns the stored diet and confidence for a raw name,
	// with ok=false on a catalog miss.
	DietFor(ctx context.Context, rawName string) (models.DietLabel, *float64, bool, error)
}

// ClientConfig configures a classifier client.
type ClientConfig struct {
	Model            string
	PricePer1KInput  float64
	PricePer1KOutput float64
	DryRun           bool
}

// Client wraps the completion boundary with budget enforcement, token/cost
// accounting, and the two prompt shapes forkcast needs. One client serves
// one batch invocation; its counters live for the process, not for any
// particular transaction.
type Client struct {
	completer Completer
	catalog   CatalogReader
	budget    *Budget
	cfg       ClientConfig

	mu    sync.Mutex
	usage Usage
}

// NewClient builds a classifier client. budget may not be nil; use
// Unlimited() when no cap is configured. catalog is only consulted in
// dry-run mode and may be nil otherwise.
func NewClient(completer Completer, catalog CatalogReader, budget *Budget, cfg ClientConfig) *Client {
	return &Client{
		completer: completer,
		catalog:   catalog,
		budget:    budget,
		cfg:       cfg,
	}
}

// UsageSnapshot returns the current cumulative counters. Callers diff two
// snapshots to attribute tokens to a single step.
func (c *Client) UsageSnapshot() Usage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage
}

// CostUSD prices the cumulative counters with the configured rates.
func (c *Client) CostUSD() float64 {
	return c.PriceUsage(c.UsageSnapshot())
}

// PriceUsage prices an arbitrary usage delta with the configured rates.
func (c *Client) PriceUsage(u Usage) float64 {
	return u.CostUSD(c.cfg.PricePer1KInput, c.cfg.PricePer1KOutput)
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.cfg.Model
}

// accumulate adds one call's usage to the counters, estimating with the
// tokenizer when the provider reported none.
func (c *Client) accumulate(promptText, responseText string, reported *TokenUsage) {
	var in, out int64
	if reported != nil {
		in, out = reported.PromptTokens, reported.CompletionTokens
	} else {
		in, out = estimateTokens(promptText), estimateTokens(responseText)
		log.Debug().Int64("input_tokens", in).Int64("output_tokens", out).
			Msg("provider omitted usage, counters estimated")
	}
	c.mu.Lock()
	c.usage.Add(in, out)
	c.mu.Unlock()
}

const askSystemPrompt = "Return exactly three food names as a JSON array of three short strings. " +
	"No explanations, no markdown fences."

// AskTopThree obtains three food names for the composed prompt. Live calls
// consume one budget unit and are biased toward varied answers; dry-run
// answers from the catalog without touching budget or counters.
func (c *Client) AskTopThree(ctx context.Context, composedPrompt string) ([]string, error) {
	if c.cfg.DryRun {
		foods, err := c.catalog.DistinctFoods(ctx, 3)
		if err != nil {
			return nil, fmt.Errorf("dry-run catalog read: %w", err)
		}
		if len(foods) < 3 {
			return nil, fmt.Errorf("dry-run needs at least 3 catalog entries, have %d", len(foods))
		}
		log.Info().Int("got", len(foods)).Str("mode", "dry_run").Msg("llm.top3")
		return foods[:3], nil
	}

	if err := c.budget.Consume("ask_top_three"); err != nil {
		return nil, err
	}

	presence, frequency := 0.3, 0.1
	start := time.Now()
	resp, err := c.completer.Complete(ctx, Request{
		Model: c.cfg.Model,
		Messages: []Message{
			{Role: "system", Content: askSystemPrompt},
			{Role: "user", Content: composedPrompt},
		},
		Temperature:      0.9,
		PresencePenalty:  &presence,
		FrequencyPenalty: &frequency,
	})
	if err != nil {
		log.Warn().Err(err).Str("op", "ask_top_three").Msg("llm.error")
		return nil, err
	}

	foods, err := parseTopThree(resp.Text)
	if err != nil {
		log.Warn().Err(err).Str("op", "ask_top_three").
			Str("raw_snippet", snippet(resp.Text)).Msg("llm.error")
		return nil, err
	}

	c.accumulate(askSystemPrompt+composedPrompt, resp.Text, resp.Usage)
	log.Info().Strs("result", foods).Dur("elapsed", time.Since(start)).Msg("llm.top3")
	return foods, nil
}

const classifyPromptFmt = "Classify the single food item below into one label:\n" +
	"- VEGAN: contains no animal products.\n" +
	"- VEGETARIAN: may include dairy/eggs, but no meat/fish.\n" +
	"- OMNIVORE: includes meat or fish.\n" +
	"Return STRICT JSON with two keys:\n" +
	"{\"diet\": \"<vegan|vegetarian|omnivore>\", \"confidence\": <float between 0 and 1>}.\n" +
	"Food: %s"

// Classify labels one food as vegan, vegetarian, or omnivore, with an
// optional confidence. A response outside the vocabulary fails with
// ErrUnmappedLabel. Dry-run answers from the catalog, returning unknown on
// a miss, without touching budget or counters.
func (c *Client) Classify(ctx context.Context, foodName string) (models.DietLabel, *float64, error) {
	if c.cfg.DryRun {
		diet, confidence, ok, err := c.catalog.DietFor(ctx, foodName)
		if err != nil {
			return models.DietUnknown, nil, fmt.Errorf("dry-run catalog read: %w", err)
		}
		if !ok {
			log.Info().Str("food", foodName).Str("mode", "dry_run_miss").Msg("llm.classify")
			return models.DietUnknown, nil, nil
		}
		log.Info().Str("food", foodName).Str("result", string(diet)).Str("mode", "dry_run").Msg("llm.classify")
		return diet, confidence, nil
	}

	if err := c.budget.Consume("classify"); err != nil {
		return models.DietUnknown, nil, err
	}

	prompt := fmt.Sprintf(classifyPromptFmt, foodName)
	start := time.Now()
	resp, err := c.completer.Complete(ctx, Request{
		Model:       c.cfg.Model,
		Messages:    []Message{{Role: "user", Content: prompt}},
		Temperature: 0,
	})
	if err != nil {
		log.Warn().Err(err).Str("op", "classify").Str("food", foodName).Msg("llm.error")
		return models.DietUnknown, nil, err
	}

	label, confidence := parseClassification(resp.Text)
	diet, ok := models.ParseDietLabel(label)
	if !ok || diet == models.DietUnknown {
		log.Warn().Str("got", snippet(resp.Text)).Str("food", foodName).Msg("llm.unexpected_label")
		return models.DietUnknown, nil, ErrUnmappedLabel
	}

	c.accumulate(prompt, resp.Text, resp.Usage)
	log.Info().Str("food", foodName).Str("result", string(diet)).
		Dur("elapsed", time.Since(start)).Msg("llm.classify")
	return diet, confidence, nil
}
