package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/insightbot-core/engine/internal/dataset"
	"github.com/insightbot-core/engine/internal/engine"
	"github.com/insightbot-core/engine/internal/engine/model"
	"github.com/insightbot-core/engine/internal/engine/repo"
	logx "github.com/insightbot-core/engine/pkg/logger"
	pkgredis "github.com/insightbot-core/engine/pkg/redis"
)

// AppConfig defines all configurable parameters for the engine demo,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	// Infrastructure
	Redis pkgredis.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Engine configs
	Models       model.ModelConfigs
	Conversation model.ConversationConfig
}

func main() {
	ctx := context.Background()
	logx.Init()

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	var envCfg AppConfig
	if err := envconfig.Process("", &envCfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	rdb, err := envCfg.Redis.New()
	if err != nil {
		log.Fatalf("Failed to initialise Redis client: %v", err)
	}
	defer rdb.Close()

	ttl, err := time.ParseDuration(envCfg.Conversation.TTL)
	if err != nil {
		log.Fatalf("Invalid CONVERSATION_TTL '%s': %v", envCfg.Conversation.TTL, err)
	}
	store := repo.NewRedisStateRepository(rdb, ttl)

	eng, err := engine.New(ctx, engine.Config{
		APIKey:       envCfg.APIKey,
		BaseURL:      envCfg.BaseURL,
		Models:       envCfg.Models,
		Conversation: envCfg.Conversation,
		StateRepo:    store,
		Tables:       store,
	})
	if err != nil {
		log.Fatalf("Failed to build engine: %v", err)
	}

	sessionID := uuid.NewString()
	if err := eng.LoadDataset(ctx, sessionID, map[string]*dataset.Table{"sales": demoSalesTable()}); err != nil {
		log.Fatalf("Failed to load demo dataset: %v", err)
	}
	fmt.Printf("Session %s started with the demo sales table\n", sessionID)

	turns := []struct {
		description string
		message     string
	}{
		{"Greeting", "hey there!"},
		{"Simple aggregate", "what is the average revenue?"},
		{"Grouped chart request", "plot total revenue by region"},
		{"Short follow-up", "and by month?"},
		{"Broad correlation", "how do the numeric columns correlate?"},
	}

	for i, turn := range turns {
		fmt.Printf("\nTurn %d: %s\n", i+1, turn.description)
		fmt.Printf("User: %s\n", turn.message)

		state, err := eng.ProcessTurn(ctx, sessionID, turn.message)
		if err != nil {
			log.Fatalf("Turn %d failed: %v", i+1, err)
		}

		fmt.Printf("Assistant: %s\n", state.Messages[len(state.Messages)-1].Content)
		if state.ChartSpec != nil {
			fmt.Printf("Chart: %s (x=%s, y=%s)\n", state.ChartSpec.Kind, state.ChartSpec.X, state.ChartSpec.Y)
		}
		for _, s := range state.Suggestions {
			fmt.Printf("  - %s\n", s)
		}
	}

	fmt.Println("\nDemo finished")
}

// demoSalesTable builds a small synthetic sales table.
func demoSalesTable() *dataset.Table {
	regions := []string{"EU", "US", "APAC"}
	months := []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun"}

	t := &dataset.Table{
		Name: "sales",
		Columns: []dataset.Column{
			{Name: "region", Dtype: dataset.Categorical},
			{Name: "month", Dtype: dataset.Categorical},
			{Name: "revenue", Dtype: dataset.Numeric},
			{Name: "units", Dtype: dataset.Numeric},
		},
	}
	base := 100.0
	for _, region := range regions {
		for mi, month := range months {
			revenue := base + float64(mi)*17.5
			units := 10 + float64(mi%4)*3
			t.Rows = append(t.Rows, []any{region, month, revenue, units})
		}
		base += 40
	}
	return t
}
