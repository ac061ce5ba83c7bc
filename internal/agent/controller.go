package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"go.uber.org/zap"

	"github.com/LuisDee/nl2sql-sub001/internal/agent/tool"
	"github.com/LuisDee/nl2sql-sub001/internal/catalog"
	"github.com/LuisDee/nl2sql-sub001/internal/embedpipeline"
	"github.com/LuisDee/nl2sql-sub001/internal/llmclient"
	"github.com/LuisDee/nl2sql-sub001/internal/retrieval"
	"github.com/LuisDee/nl2sql-sub001/internal/sqlpipeline"
	"github.com/LuisDee/nl2sql-sub001/internal/warehouse"
)

// Config bundles the tunables the controller needs from process
// configuration, mirroring config.Config's field names so wiring is a
// straight copy at startup.
type Config struct {
	MetadataDataset         string
	EmbeddingModelRef       string
	AutonomousEmbeddings    bool
	SemanticCacheThreshold  float64
	TableSearchTopK         int
	ColumnSearchTopK        int
	ColumnSearchMaxPerTable int
	RowCap                  int
	QueryTimeout            time.Duration
	MaxToolCallsPerTurn     int
	MaxConsecutiveRepeats   int
	MaxDryRunRetries        int
	PromptSQLPreviewChars   int
	PromptRowPreviewCount   int
}

// Controller is the single conversational entry point: it sequences the
// tool-calling loop against the configured LLM, maintaining per-turn state
// and assembling the system prompt from the catalog.
type Controller struct {
	cfg       Config
	cat       *catalog.Catalog
	wh        warehouse.Warehouse
	retrieval *retrieval.Engine
	embed     *embedpipeline.Pipeline
	sqlCfg    sqlpipeline.Config
	llm       *llmclient.Client
	log       *zap.Logger

	turnCache *retrieval.TurnCache
	state     *State
	registry  *tool.Registry

	staticPrompt string
	lastSQL      string
	lastRows     []map[string]any
}

// New builds a Controller wired against wh/cat/llm with the given config.
func New(wh warehouse.Warehouse, cat *catalog.Catalog, llm *llmclient.Client, cfg Config, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}

	c := &Controller{
		cfg: cfg,
		cat: cat,
		wh:  wh,
		retrieval: retrieval.New(wh, retrieval.Config{
			MetadataDataset:         cfg.MetadataDataset,
			EmbeddingModelRef:       cfg.EmbeddingModelRef,
			TableSearchTopK:         cfg.TableSearchTopK,
			ColumnSearchTopK:        cfg.ColumnSearchTopK,
			ColumnSearchMaxPerTable: cfg.ColumnSearchMaxPerTable,
			SemanticCacheThreshold:  cfg.SemanticCacheThreshold,
		}, log),
		embed: embedpipeline.New(wh, cat, embedpipeline.Config{
			MetadataDataset:      cfg.MetadataDataset,
			EmbeddingModelRef:    cfg.EmbeddingModelRef,
			AutonomousEmbeddings: cfg.AutonomousEmbeddings,
		}, log),
		sqlCfg: sqlpipeline.Config{
			RowCap:       cfg.RowCap,
			QueryTimeout: cfg.QueryTimeout,
		},
		llm:       llm,
		log:       log,
		turnCache: retrieval.NewTurnCache(),
		state:     NewState(cfg.MaxToolCallsPerTurn, cfg.MaxConsecutiveRepeats, cfg.MaxDryRunRetries),
	}

	c.registry = c.buildRegistry()
	c.staticPrompt = buildStaticPrompt(cat, c.registry.Names())
	return c
}

// toolDefinitions returns every registered tool's Definition, in no
// particular order.
func (c *Controller) toolDefinitions() []*tool.Definition {
	tools := c.registry.All()
	defs := make([]*tool.Definition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, t.Definition())
	}
	return defs
}

// Ask is the controller's single conversational entry point: it drives the
// tool-calling loop to completion and returns the model's final answer.
func (c *Controller) Ask(ctx context.Context, question string) (string, error) {
	toolCtx := tool.NewContext(ctx)

	systemPrompt := c.staticPrompt + "\n\n" + buildDynamicPrompt(
		c.state, c.lastSQL, c.cfg.PromptSQLPreviewChars, c.lastRows, c.cfg.PromptRowPreviewCount,
	)

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
		openai.UserMessage(question),
	}

	// A hard backstop independent of the LLM respecting LoopError: the
	// per-turn tool-call budget already caps productive work, so this just
	// bounds how many empty round-trips we'll tolerate around it.
	maxRounds := c.cfg.MaxToolCallsPerTurn + 5

	defs := c.toolDefinitions()

	for round := 0; round < maxRounds; round++ {
		resp, err := c.llm.ChatCompletion(ctx, messages, defs)
		if err != nil {
			return "", fmt.Errorf("agent: chat completion: %w", err)
		}

		calls := llmclient.ToolCallsOf(resp)
		if len(calls) == 0 {
			return llmclient.AssistantTextOf(resp), nil
		}

		messages = llmclient.AppendAssistantMessage(messages, resp)
		results := c.dispatch(toolCtx, calls)
		messages = llmclient.AppendToolResults(messages, results)
	}

	return "", fmt.Errorf("agent: exceeded %d tool-calling rounds without a final answer", maxRounds)
}

// dispatch runs the pre-tool gate, then the tool itself, for every call in
// the batch the model issued this round.
func (c *Controller) dispatch(ctx tool.Context, calls []tool.Call) []tool.Result {
	results := make([]tool.Result, 0, len(calls))
	for _, call := range calls {
		if err := c.state.PreTool(call.Name, call.Arguments); err != nil {
			results = append(results, tool.Result{ID: call.ID, Name: call.Name, Output: fail(err.Error())})
			continue
		}

		t, found := c.registry.Find(call.Name)
		if !found {
			results = append(results, tool.Result{ID: call.ID, Name: call.Name, Output: fail("unknown tool " + call.Name)})
			continue
		}

		if call.Name == "execute_sql" || call.Name == "dry_run_sql" {
			var p struct {
				SQL string `json:"sql"`
			}
			if decodeArgs(call.Arguments, &p) == nil && p.SQL != "" {
				c.lastSQL = p.SQL
			}
		}

		out, err := t.Call(ctx, call.Arguments)
		results = append(results, tool.Result{ID: call.ID, Name: call.Name, Output: out, Err: err})
	}
	return results
}
