package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/compose"

	"github.com/insightbot-core/engine/internal/engine/graph/nodes"
	"github.com/insightbot-core/engine/internal/engine/llm"
	"github.com/insightbot-core/engine/internal/engine/model"
	"github.com/insightbot-core/engine/internal/sandbox"
	"github.com/insightbot-core/engine/internal/viz"
	logx "github.com/insightbot-core/engine/pkg/logger"
)

// defaultMaxRunSteps bounds one traversal of the conversation graph.
// The graph is acyclic, so this only guards against wiring mistakes.
const defaultMaxRunSteps = 20

// Config holds everything needed to compose the conversation graph.
type Config struct {
	APIKey  string
	BaseURL string

	Models       model.ModelConfigs
	Conversation model.ConversationConfig

	Tables model.TableStore
}

// Deps are the constructed node dependencies: one caller per model
// role, the tool-bound dispatcher, and the sandboxed executor.
type Deps struct {
	Classifier llm.Caller
	Resolver   llm.Caller
	Dispatcher llm.Caller
	Planner    llm.Caller
	CodeGen    llm.Caller
	Summarizer llm.Caller
	Suggester  llm.Caller
	SmallTalk  llm.Caller

	Tables   model.TableStore
	Executor *sandbox.Executor
}

// NewDeps builds every model caller from the shared registry and
// prepares the executor.
func NewDeps(ctx context.Context, cfg Config) (*Deps, error) {
	if cfg.Tables == nil {
		return nil, fmt.Errorf("table store is nil")
	}

	registry, err := llm.NewRegistry(ctx, llm.RegistryConfig{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL})
	if err != nil {
		return nil, err
	}

	d := &Deps{Tables: cfg.Tables}
	callers := []struct {
		dst *llm.Caller
		cfg model.ModelRoleConfig
	}{
		{&d.Classifier, cfg.Models.Router.Role()},
		{&d.Resolver, cfg.Models.Resolver.Role()},
		{&d.Planner, cfg.Models.Planner.Role()},
		{&d.CodeGen, cfg.Models.CodeGen.Role()},
		{&d.Summarizer, cfg.Models.Summarizer.Role()},
		{&d.Suggester, cfg.Models.Suggestion.Role()},
		{&d.SmallTalk, cfg.Models.SmallTalk.Role()},
	}
	for _, c := range callers {
		caller, err := registry.Caller(ctx, c.cfg)
		if err != nil {
			return nil, err
		}
		*c.dst = caller
	}

	dispatcher, err := registry.Caller(ctx, cfg.Models.Analyzer.Role())
	if err != nil {
		return nil, err
	}
	bound, err := dispatcher.WithTools(nodes.AnalysisToolInfos())
	if err != nil {
		return nil, err
	}
	d.Dispatcher = bound

	d.Executor = sandbox.NewExecutor()
	if raw := cfg.Conversation.Executor.Timeout; raw != "" {
		if timeout, err := time.ParseDuration(raw); err == nil && timeout > 0 {
			d.Executor.Timeout = timeout
		} else {
			logx.Warn().Str("timeout", raw).Msg("invalid executor timeout, using default")
		}
	}
	return d, nil
}

// GraphBuilder handles the construction of the conversation graph.
type GraphBuilder struct {
	deps        *Deps
	maxRunSteps int
	graph       *compose.Graph[*model.ConversationState, *model.ConversationState]
}

// BuildGraph constructs and compiles the turn graph: one traversal per
// user message, state threaded through every stage.
func BuildGraph(ctx context.Context, deps *Deps, maxRunSteps int) (compose.Runnable[*model.ConversationState, *model.ConversationState], error) {
	if deps == nil {
		return nil, fmt.Errorf("graph deps are nil")
	}
	if maxRunSteps <= 0 {
		maxRunSteps = defaultMaxRunSteps
	}

	builder := &GraphBuilder{
		deps:        deps,
		maxRunSteps: maxRunSteps,
		graph:       compose.NewGraph[*model.ConversationState, *model.ConversationState](),
	}

	builder.addNodes()
	builder.addEdges()
	if err := builder.addBranches(); err != nil {
		return nil, err
	}
	return builder.compile(ctx)
}

// addNodes adds all processing stages to the graph.
func (b *GraphBuilder) addNodes() {
	d := b.deps

	router := &nodes.RouterNode{Classifier: d.Classifier, Resolver: d.Resolver}
	clarification := &nodes.ClarificationNode{}
	analyzer := &nodes.AnalyzerNode{Dispatcher: d.Dispatcher}
	planner := &nodes.PlannerNode{Planner: d.Planner}
	insight := &nodes.InsightNode{
		CodeGen:    d.CodeGen,
		Summarizer: d.Summarizer,
		Tables:     d.Tables,
		Executor:   d.Executor,
	}
	vizNode := &nodes.VizNode{Tables: d.Tables, Renderer: viz.NewRenderer()}
	responder := &nodes.ResponderNode{SmallTalk: d.SmallTalk}
	suggestion := &nodes.SuggestionNode{Suggester: d.Suggester}

	b.graph.AddLambdaNode(nodes.NodeRouter, compose.InvokableLambda(router.Run))
	b.graph.AddLambdaNode(nodes.NodeClarification, compose.InvokableLambda(clarification.Run))
	b.graph.AddLambdaNode(nodes.NodeAnalyzer, compose.InvokableLambda(analyzer.Run))
	b.graph.AddLambdaNode(nodes.NodePlanner, compose.InvokableLambda(planner.Run))
	b.graph.AddLambdaNode(nodes.NodeInsight, compose.InvokableLambda(insight.Run))
	b.graph.AddLambdaNode(nodes.NodeViz, compose.InvokableLambda(vizNode.Run))
	b.graph.AddLambdaNode(nodes.NodeResponder, compose.InvokableLambda(responder.Run))
	b.graph.AddLambdaNode(nodes.NodeSuggestion, compose.InvokableLambda(suggestion.Run))
}

// addEdges creates the unconditional flow connections.
func (b *GraphBuilder) addEdges() {
	edges := [][2]string{
		{compose.START, nodes.NodeRouter},
		{nodes.NodeClarification, compose.END},
		{nodes.NodePlanner, nodes.NodeInsight},
		{nodes.NodeViz, nodes.NodeResponder},
		{nodes.NodeResponder, nodes.NodeSuggestion},
		{nodes.NodeSuggestion, compose.END},
	}
	for _, edge := range edges {
		b.graph.AddEdge(edge[0], edge[1])
	}
}

// addBranches creates the conditional routing branches.
func (b *GraphBuilder) addBranches() error {
	routerBranch := compose.NewGraphBranch(
		nodes.RouterCondition(),
		map[string]bool{
			nodes.NodeClarification: true,
			nodes.NodeResponder:     true,
			nodes.NodeInsight:       true,
			nodes.NodeAnalyzer:      true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeRouter, routerBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding router branch")
		return fmt.Errorf("error adding router branch: %w", err)
	}

	analyzerBranch := compose.NewGraphBranch(
		nodes.AnalyzerCondition(),
		map[string]bool{
			nodes.NodePlanner:   true,
			nodes.NodeInsight:   true,
			nodes.NodeViz:       true,
			nodes.NodeResponder: true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeAnalyzer, analyzerBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding analyzer branch")
		return fmt.Errorf("error adding analyzer branch: %w", err)
	}

	insightBranch := compose.NewGraphBranch(
		nodes.InsightCondition(),
		map[string]bool{
			nodes.NodeViz:       true,
			nodes.NodeResponder: true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeInsight, insightBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding insight branch")
		return fmt.Errorf("error adding insight branch: %w", err)
	}
	return nil
}

// compile finalizes the graph.
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[*model.ConversationState, *model.ConversationState], error) {
	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(b.maxRunSteps))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}
	logx.Debug().Msg("Conversation graph compiled successfully")
	return runnable, nil
}
