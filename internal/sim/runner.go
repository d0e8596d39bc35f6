package sim

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/thebtf/forkcast/internal/catalog"
	gormdb "github.com/thebtf/forkcast/internal/db/gorm"
	"github.com/thebtf/forkcast/internal/llm"
	"github.com/thebtf/forkcast/pkg/foodname"
	"github.com/thebtf/forkcast/pkg/models"
)

// Options configures one batch invocation.
type Options struct {
	Runs            int
	RunID           string // generated when empty
	ContinueOnError bool   // keep going when an iteration fails
	Offline         bool   // deterministic catalog picker instead of asking
	BucketHint      bool   // rotate cuisine buckets into the prompt
}

// Summary reports the outcome of one batch.
type Summary struct {
	RunID        string  `json:"run_id"`
	Users        int     `json:"users"`
	Failed       int     `json:"failed"`
	InputTokens  int64   `json:"llm_input_tokens"`
	OutputTokens int64   `json:"llm_output_tokens"`
	CostUSD      float64 `json:"llm_cost_usd"`
}

// Runner drives N simulated users. Iterations execute strictly
// sequentially so the shared client counters and budget stay consistent
// and attributable per iteration; each iteration's writes happen inside
// one transaction.
type Runner struct {
	store  *gormdb.Store
	client *llm.Client
}

// NewRunner creates a runner over a store and a classifier client.
func NewRunner(store *gormdb.Store, client *llm.Client) *Runner {
	return &Runner{store: store, client: client}
}

// Run executes the batch. On a failed iteration the whole batch aborts
// unless ContinueOnError is set; either way the failed iteration leaves no
// rows behind. Client token counters are process-lifetime: a rollback does
// not refund tokens already counted, which the summary reflects.
func (r *Runner) Run(ctx context.Context, opts Options) (*Summary, error) {
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	start := r.client.UsageSnapshot()
	seenTrios := map[string]bool{}
	summary := &Summary{RunID: runID}

	log.Info().Str("run_id", runID).Int("runs", opts.Runs).Bool("offline", opts.Offline).
		Msg("simulation.start")

	for i := 0; i < opts.Runs; i++ {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if err := r.runIteration(ctx, runID, i, opts, seenTrios); err != nil {
			summary.Failed++
			log.Error().Err(err).Str("run_id", runID).Int("iteration", i).
				Msg("simulation.iteration_failed")
			if !opts.ContinueOnError {
				r.fillUsage(summary, start)
				return summary, err
			}
			continue
		}
		summary.Users++
	}

	r.fillUsage(summary, start)
	log.Info().Str("run_id", runID).Int("users", summary.Users).Int("failed", summary.Failed).
		Int64("llm_input_tokens", summary.InputTokens).
		Int64("llm_output_tokens", summary.OutputTokens).
		Float64("llm_cost_usd", summary.CostUSD).
		Msg("simulation.done")
	return summary, nil
}

func (r *Runner) fillUsage(summary *Summary, start llm.Usage) {
	delta := r.client.UsageSnapshot().Sub(start)
	summary.InputTokens = delta.InputTokens
	summary.OutputTokens = delta.OutputTokens
	summary.CostUSD = r.client.PriceUsage(delta)
}

// runIteration executes one simulated user inside a single transaction.
// Any failure rolls back every write of the iteration.
func (r *Runner) runIteration(ctx context.Context, runID string, iteration int, opts Options, seenTrios map[string]bool) error {
	return r.store.DB.Transaction(func(tx *gorm.DB) error {
		runStore := gormdb.NewRunStore(tx)
		resolver := catalog.NewResolver(tx, r.client)

		user, err := runStore.CreateUser(ctx, runID)
		if err != nil {
			return fmt.Errorf("create user: %w", err)
		}

		composedPrompt := composePrompt(runID, iteration, opts.BucketHint)

		// Counters before the ask step; the delta is everything turn A pays for.
		askBefore := r.client.UsageSnapshot()

		var foods []string
		if opts.Offline {
			all, err := resolver.Store().AllFoods(ctx)
			if err != nil {
				return fmt.Errorf("catalog snapshot: %w", err)
			}
			foods, err = pickOffline(all, iteration)
			if err != nil {
				return err
			}
		} else {
			foods, err = r.client.AskTopThree(ctx, composedPrompt)
			if err != nil {
				return err
			}
		}

		if key := trioKey(foods); seenTrios[key] && !opts.Offline {
			log.Info().Strs("foods", foods).Msg("top3.duplicate_detected")
			foods, err = r.client.AskTopThree(ctx, composedPrompt+avoidLine)
			if err != nil {
				return err
			}
			log.Info().Strs("foods", foods).Msg("top3.retry_unique")
		}
		seenTrios[trioKey(foods)] = true

		askDelta := r.client.UsageSnapshot().Sub(askBefore)
		aPrompt, aCompletion := askDelta.InputTokens, askDelta.OutputTokens
		aCost := r.client.PriceUsage(askDelta)
		if _, err := runStore.CreateTurn(ctx, gormdb.TurnRecord{
			UserID:           user.ID,
			Role:             models.RoleAsk,
			Prompt:           composedPrompt,
			Model:            r.client.Model(),
			PromptTokens:     &aPrompt,
			CompletionTokens: &aCompletion,
			EstimatedCostUSD: &aCost,
			RunID:            runID,
		}); err != nil {
			return fmt.Errorf("create turn A: %w", err)
		}

		// Turn B starts with null token fields; filled once classification ends.
		turnBID, err := runStore.CreateTurn(ctx, gormdb.TurnRecord{
			UserID:   user.ID,
			Role:     models.RoleAnswer,
			Prompt:   composedPrompt,
			Response: strings.Join(foods, ", "),
			Model:    r.client.Model(),
			RunID:    runID,
		})
		if err != nil {
			return fmt.Errorf("create turn B: %w", err)
		}

		// Counters before the classification loop; the delta is turn B's share.
		classifyBefore := r.client.UsageSnapshot()

		labels := make([]string, 0, len(foods))
		for rank, raw := range foods {
			norm := foodname.Normalize(raw)
			entry, err := resolver.Resolve(ctx, norm)
			if err != nil {
				return fmt.Errorf("resolve %q: %w", norm, err)
			}

			var catalogID *int64
			label := models.DietUnknown
			if entry != nil {
				catalogID = &entry.ID
				label = entry.Diet
			}
			if err := runStore.CreateFavorite(ctx, user.ID, rank+1, raw, norm, catalogID); err != nil {
				return fmt.Errorf("create favorite %d: %w", rank+1, err)
			}
			labels = append(labels, string(label))
		}

		diet := models.ReduceDiets(labels)
		if err := runStore.SetUserDiet(ctx, user.ID, diet); err != nil {
			return fmt.Errorf("set user diet: %w", err)
		}

		classifyDelta := r.client.UsageSnapshot().Sub(classifyBefore)
		if err := runStore.UpdateTurnTokens(ctx, turnBID,
			classifyDelta.InputTokens, classifyDelta.OutputTokens,
			r.client.PriceUsage(classifyDelta)); err != nil {
			return fmt.Errorf("update turn B tokens: %w", err)
		}

		log.Info().
			Str("user_id", user.ID).
			Str("run_id", runID).
			Strs("foods", foods).
			Str("derived_diet", string(diet)).
			Int64("a_tokens", askDelta.Total()).
			Int64("b_tokens", classifyDelta.Total()).
			Msg("simulation.user_done")
		return nil
	})
}

// pickOffline rotates through the sorted snapshot so consecutive
// iterations pick different, distinct trios.
func pickOffline(all []string, iteration int) ([]string, error) {
	if len(all) < 3 {
		return nil, fmt.Errorf("offline picker needs at least 3 catalog entries, have %d", len(all))
	}
	foods := make([]string, 3)
	for j := 0; j < 3; j++ {
		foods[j] = all[(iteration+j)%len(all)]
	}
	return foods, nil
}
