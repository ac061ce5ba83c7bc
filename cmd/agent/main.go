// Command agent runs an interactive natural-language-to-SQL session against
// a BigQuery warehouse: it loads the catalog and config, then reads
// questions from stdin and prints the controller's answer to stdout.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/LuisDee/nl2sql-sub001/internal/agent"
	"github.com/LuisDee/nl2sql-sub001/internal/catalog"
	"github.com/LuisDee/nl2sql-sub001/internal/config"
	"github.com/LuisDee/nl2sql-sub001/internal/llmclient"
	"github.com/LuisDee/nl2sql-sub001/internal/warehouse"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "agent:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat, err := catalog.Load(cfg.CatalogRoot)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	wh, err := warehouse.NewBigQuery(ctx, cfg.ProjectID, cfg.Location, cfg.FetchTimeout, log)
	if err != nil {
		return fmt.Errorf("connect warehouse: %w", err)
	}
	defer wh.Close() //nolint:errcheck
	warehouse.Set(wh)

	llm, err := llmclient.New(cfg.LLMBaseURL, cfg.LLMModel, llmclient.NewApiKey(cfg.LLMAPIKey))
	if err != nil {
		return fmt.Errorf("build llm client: %w", err)
	}

	ctl := agent.New(wh, cat, llm, agent.Config{
		MetadataDataset:         cfg.MetadataDataset,
		EmbeddingModelRef:       cfg.EmbeddingModelRef,
		AutonomousEmbeddings:    cfg.AutonomousEmbeddings,
		SemanticCacheThreshold:  cfg.SemanticCacheThreshold,
		TableSearchTopK:         cfg.TableSearchTopK,
		ColumnSearchTopK:        cfg.ColumnSearchTopK,
		ColumnSearchMaxPerTable: cfg.ColumnSearchMaxPerTable,
		RowCap:                  cfg.RowCap,
		QueryTimeout:            cfg.QueryTimeout,
		MaxToolCallsPerTurn:     cfg.MaxToolCallsPerTurn,
		MaxConsecutiveRepeats:   cfg.MaxConsecutiveRepeats,
		MaxDryRunRetries:        cfg.MaxDryRunRetries,
		PromptSQLPreviewChars:   cfg.PromptSQLPreviewChars,
		PromptRowPreviewCount:   cfg.PromptRowPreviewCount,
	}, log)

	log.Info("agent ready", zap.String("project", cfg.ProjectID), zap.String("model", cfg.LLMModel))

	return repl(ctx, ctl, log)
}

// repl reads one question per line from stdin until EOF or the context is
// cancelled, printing each answer to stdout.
func repl(ctx context.Context, ctl *agent.Controller, log *zap.Logger) error {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Fprint(os.Stdout, "> ")
	for scanner.Scan() {
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			fmt.Fprint(os.Stdout, "> ")
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		answer, err := ctl.Ask(ctx, question)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			log.Warn("ask failed", zap.Error(err))
			fmt.Fprintln(os.Stdout, "error:", err)
		} else {
			fmt.Fprintln(os.Stdout, answer)
		}
		fmt.Fprint(os.Stdout, "> ")
	}
	return scanner.Err()
}
