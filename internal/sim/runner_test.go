package sim

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	gormdb "github.com/thebtf/forkcast/internal/db/gorm"
	"github.com/thebtf/forkcast/internal/llm"
	"github.com/thebtf/forkcast/pkg/models"
)

// scriptedCompleter replays canned responses in order and records requests.
type scriptedCompleter struct {
	responses []*llm.Response
	calls     []llm.Request
}

func (s *scriptedCompleter) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	idx := len(s.calls)
	s.calls = append(s.calls, req)
	if idx >= len(s.responses) {
		return nil, context.Canceled
	}
	return s.responses[idx], nil
}

func respond(text string, prompt, completion int64) *llm.Response {
	return &llm.Response{
		Text:  text,
		Usage: &llm.TokenUsage{PromptTokens: prompt, CompletionTokens: completion},
	}
}

// testStore creates a Store with a temporary SQLite database.
func testStore(t *testing.T) (*gormdb.Store, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "forkcast_sim_test_*")
	if err != nil {
		t.Fatalf("create temp dir: %v", err)
	}

	store, err := gormdb.NewStore(gormdb.Config{
		DSN:      filepath.Join(tmpDir, "test.db"),
		MaxConns: 4,
		LogLevel: logger.Silent,
	})
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("NewStore failed: %v", err)
	}

	cleanup := func() {
		store.Close()
		os.RemoveAll(tmpDir)
	}

	return store, cleanup
}

func seedCatalog(t *testing.T, store *gormdb.Store, entries map[string]models.DietLabel) {
	t.Helper()
	cs := gormdb.NewCatalogStore(store.DB)
	for name, diet := range entries {
		_, _, err := cs.Upsert(context.Background(), name, diet, models.SourceStatic, nil)
		require.NoError(t, err)
	}
}

func clientConfig() llm.ClientConfig {
	return llm.ClientConfig{
		Model:            "gpt-4o-mini",
		PricePer1KInput:  0.150,
		PricePer1KOutput: 0.600,
	}
}

func TestRunAllCacheHits(t *testing.T) {
	store, cleanup := testStore(t)
	defer cleanup()

	seedCatalog(t, store, map[string]models.DietLabel{
		"banana":        models.DietVegan,
		"avocado toast": models.DietVegan,
		"hummus":        models.DietVegan,
	})

	completer := &scriptedCompleter{
		responses: []*llm.Response{
			respond(`["banana", "avocado toast", "hummus"]`, 80, 15),
		},
	}
	client := llm.NewClient(completer, nil, llm.Unlimited(), clientConfig())
	runner := NewRunner(store, client)

	summary, err := runner.Run(context.Background(), Options{Runs: 1, RunID: "run-hits"})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Users)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, int64(80), summary.InputTokens)
	assert.Equal(t, int64(15), summary.OutputTokens)

	// Every name was cached, so the only call was the ask.
	assert.Len(t, completer.calls, 1)

	var users []gormdb.UserProfile
	require.NoError(t, store.DB.Find(&users).Error)
	require.Len(t, users, 1)
	assert.Equal(t, "vegan", users[0].Diet)

	var turns []gormdb.ConversationTurn
	require.NoError(t, store.DB.Order("id").Find(&turns).Error)
	require.Len(t, turns, 2)

	assert.Equal(t, "A", turns[0].Role)
	require.True(t, turns[0].PromptTokens.Valid)
	assert.Equal(t, int64(80), turns[0].PromptTokens.Int64)
	assert.Equal(t, int64(15), turns[0].CompletionTokens.Int64)

	// Turn B pays for the classification loop, which ran entirely on cache.
	assert.Equal(t, "B", turns[1].Role)
	require.True(t, turns[1].PromptTokens.Valid)
	assert.Zero(t, turns[1].PromptTokens.Int64)
	assert.Zero(t, turns[1].CompletionTokens.Int64)

	var favs []gormdb.FavoriteFood
	require.NoError(t, store.DB.Order("rank").Find(&favs).Error)
	require.Len(t, favs, 3)
	assert.Equal(t, "banana", favs[0].FoodName)
	assert.True(t, favs[0].CatalogID.Valid)
}

func TestRunClassifiesUnseededName(t *testing.T) {
	store, cleanup := testStore(t)
	defer cleanup()

	seedCatalog(t, store, map[string]models.DietLabel{
		"hummus":  models.DietVegan,
		"falafel": models.DietVegan,
	})

	completer := &scriptedCompleter{
		responses: []*llm.Response{
			respond(`["hummus", "falafel", "shakshuka"]`, 80, 15),
			respond(`{"diet": "vegetarian", "confidence": 0.9}`, 60, 12),
		},
	}
	client := llm.NewClient(completer, nil, llm.Unlimited(), clientConfig())
	runner := NewRunner(store, client)

	summary, err := runner.Run(context.Background(), Options{Runs: 1, RunID: "run-miss"})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Users)

	// Exactly one classification happened, for the one unseeded name.
	assert.Len(t, completer.calls, 2)
	assert.Contains(t, completer.calls[1].Messages[0].Content, "shakshuka")

	// Its answer was cached with the llm source.
	entry, err := gormdb.NewCatalogStore(store.DB).Lookup(context.Background(), "shakshuka")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, models.DietVegetarian, entry.Diet)
	assert.Equal(t, models.SourceLLM, entry.Source)
	require.True(t, entry.Confidence.Valid)
	assert.InDelta(t, 0.9, entry.Confidence.Float64, 1e-9)

	// Turn B's accounting equals the single classify call.
	var turnB gormdb.ConversationTurn
	require.NoError(t, store.DB.Where("role = ?", "B").First(&turnB).Error)
	assert.Equal(t, int64(60), turnB.PromptTokens.Int64)
	assert.Equal(t, int64(12), turnB.CompletionTokens.Int64)
	assert.Equal(t, int64(72), turnB.TotalTokens.Int64)

	// Vegetarian outranks vegan in the reduction.
	var user gormdb.UserProfile
	require.NoError(t, store.DB.First(&user).Error)
	assert.Equal(t, "vegetarian", user.Diet)
}

func TestRunBudgetExhaustionRollsBackIteration(t *testing.T) {
	store, cleanup := testStore(t)
	defer cleanup()

	seedCatalog(t, store, map[string]models.DietLabel{
		"hummus":  models.DietVegan,
		"falafel": models.DietVegan,
	})

	completer := &scriptedCompleter{
		responses: []*llm.Response{
			respond(`["hummus", "falafel", "shakshuka"]`, 80, 15),
		},
	}
	// One call covers the ask; the classify for shakshuka must fail.
	client := llm.NewClient(completer, nil, llm.NewBudget(1), clientConfig())
	runner := NewRunner(store, client)

	summary, err := runner.Run(context.Background(), Options{Runs: 1, RunID: "run-budget"})
	var budgetErr *llm.BudgetExceededError
	require.ErrorAs(t, err, &budgetErr)
	assert.Equal(t, 0, summary.Users)
	assert.Equal(t, 1, summary.Failed)

	// The failed iteration left no rows behind.
	var userCount, turnCount, favCount int64
	store.DB.Model(&gormdb.UserProfile{}).Count(&userCount)
	store.DB.Model(&gormdb.ConversationTurn{}).Count(&turnCount)
	store.DB.Model(&gormdb.FavoriteFood{}).Count(&favCount)
	assert.Zero(t, userCount)
	assert.Zero(t, turnCount)
	assert.Zero(t, favCount)

	// The ask's tokens were still counted; counters are not transactional.
	assert.Equal(t, int64(80), summary.InputTokens)
	assert.Equal(t, int64(15), summary.OutputTokens)
}

func TestRunDuplicateTrioRetries(t *testing.T) {
	store, cleanup := testStore(t)
	defer cleanup()

	seedCatalog(t, store, map[string]models.DietLabel{
		"hummus":  models.DietVegan,
		"falafel": models.DietVegan,
		"pho":     models.DietOmnivore,
		"banh mi": models.DietOmnivore,
		"banana":  models.DietVegan,
	})

	trio := `["hummus", "falafel", "banana"]`
	completer := &scriptedCompleter{
		responses: []*llm.Response{
			respond(trio, 80, 15),
			// Second iteration repeats the trio, triggering one retry.
			respond(trio, 80, 15),
			respond(`["pho", "banh mi", "banana"]`, 90, 16),
		},
	}
	client := llm.NewClient(completer, nil, llm.Unlimited(), clientConfig())
	runner := NewRunner(store, client)

	summary, err := runner.Run(context.Background(), Options{Runs: 2, RunID: "run-dup"})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Users)

	require.Len(t, completer.calls, 3)
	retryPrompt := completer.calls[2].Messages[1].Content
	assert.True(t, strings.HasSuffix(retryPrompt, avoidLine))

	// Both asks of the second iteration land on its turn A.
	var turnsA []gormdb.ConversationTurn
	require.NoError(t, store.DB.Where("role = ?", "A").Order("id").Find(&turnsA).Error)
	require.Len(t, turnsA, 2)
	assert.Equal(t, int64(80), turnsA[0].PromptTokens.Int64)
	assert.Equal(t, int64(170), turnsA[1].PromptTokens.Int64)
	assert.Equal(t, int64(31), turnsA[1].CompletionTokens.Int64)
}

func TestRunOfflineNeverCallsCompleter(t *testing.T) {
	store, cleanup := testStore(t)
	defer cleanup()

	seedCatalog(t, store, map[string]models.DietLabel{
		"banana":      models.DietVegan,
		"hummus":      models.DietVegan,
		"lentil soup": models.DietVegan,
		"pho":         models.DietOmnivore,
	})

	completer := &scriptedCompleter{}
	client := llm.NewClient(completer, nil, llm.NewBudget(0), clientConfig())
	runner := NewRunner(store, client)

	summary, err := runner.Run(context.Background(), Options{Runs: 3, RunID: "run-offline", Offline: true})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Users)
	assert.Empty(t, completer.calls)
	assert.Zero(t, summary.InputTokens)

	var userCount int64
	store.DB.Model(&gormdb.UserProfile{}).Count(&userCount)
	assert.Equal(t, int64(3), userCount)
}

func TestRunContinueOnError(t *testing.T) {
	store, cleanup := testStore(t)
	defer cleanup()

	seedCatalog(t, store, map[string]models.DietLabel{
		"hummus":  models.DietVegan,
		"falafel": models.DietVegan,
		"banana":  models.DietVegan,
	})

	completer := &scriptedCompleter{
		responses: []*llm.Response{
			respond("no foods for you", 40, 8),
			respond(`["hummus", "falafel", "banana"]`, 80, 15),
		},
	}
	client := llm.NewClient(completer, nil, llm.Unlimited(), clientConfig())
	runner := NewRunner(store, client)

	summary, err := runner.Run(context.Background(), Options{
		Runs: 2, RunID: "run-keep", ContinueOnError: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Users)
	assert.Equal(t, 1, summary.Failed)
}

func TestPickOffline(t *testing.T) {
	all := []string{"a", "b", "c", "d"}

	foods, err := pickOffline(all, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, foods)

	foods, err = pickOffline(all, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d", "a"}, foods)

	_, err = pickOffline([]string{"a", "b"}, 0)
	require.Error(t, err)
}

func TestComposePrompt(t *testing.T) {
	p0 := composePrompt("run-x", 0, true)
	p1 := composePrompt("run-x", 1, true)
	assert.NotEqual(t, p0, p1)
	assert.Contains(t, p0, "Middle Eastern")
	assert.Contains(t, p1, "African")
	assert.Contains(t, p0, "(seed:run-x-0)")

	plain := composePrompt("run-x", 0, false)
	assert.NotContains(t, plain, "Middle Eastern")
}

func TestTrioKeyOrderInsensitive(t *testing.T) {
	a := trioKey([]string{"Hummus", "falafel ", "banana"})
	b := trioKey([]string{"banana", "hummus", "Falafel"})
	assert.Equal(t, a, b)
}
