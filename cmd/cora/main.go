// Command cora runs the support assistant: an HTTP API server, a knowledge
// base indexer and a one-shot question mode for quick local checks.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	cora "github.com/rayied/cora"
	"github.com/rayied/cora/config"
	"github.com/rayied/cora/core"
	"github.com/rayied/cora/index"
	"github.com/rayied/cora/index/weaviate"
	"github.com/rayied/cora/ingest"
	"github.com/rayied/cora/logging"
	"github.com/rayied/cora/memory"
	"github.com/rayied/cora/model"
	"github.com/rayied/cora/model/anthropic"
	"github.com/rayied/cora/model/openai"
	"github.com/rayied/cora/server"
	"github.com/rayied/cora/translate"
)

func main() {
	// Missing .env is fine; plain environment variables still apply.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "cora",
		Short:         "Retrieval-augmented customer support assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), indexCmd(), askCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newLogger() logging.Logger {
	cfg := logging.DefaultLoggerConfig()
	cfg.Component = "cora"
	if strings.EqualFold(os.Getenv("CORA_LOG_LEVEL"), "debug") {
		cfg.Level = logging.LogLevelDebug
	}
	return logging.NewLogger(cfg)
}

// buildModel selects the chat model backend from the environment. OpenAI is
// the default; CORA_MODEL_PROVIDER=anthropic switches providers and
// CORA_MODEL overrides the model name.
func buildModel() model.Model {
	name := os.Getenv("CORA_MODEL")
	if strings.EqualFold(os.Getenv("CORA_MODEL_PROVIDER"), "anthropic") {
		return anthropic.NewModel(func(o *anthropic.Options) {
			if name != "" {
				o.Model = anthropicsdk.Model(name)
			}
		})
	}
	return openai.NewModel(func(o *openai.Options) {
		if name != "" {
			o.Model = name
		}
	})
}

// buildIndex connects to Weaviate, falling back to a process-local index when
// CORA_INDEX=memory is set (useful for tests and offline development).
func buildIndex(ctx context.Context, cfg config.Config, logger logging.Logger) (core.VectorIndex, error) {
	embedder := openai.NewEmbedder()
	if strings.EqualFold(os.Getenv("CORA_INDEX"), "memory") {
		return index.NewInMemoryIndex(embedder), nil
	}
	return weaviate.New(ctx, cfg.WeaviateURL, embedder, func(o *weaviate.Options) {
		o.Logger = logger
	})
}

func buildAssistant(ctx context.Context, cfg config.Config, logger logging.Logger) (*cora.Assistant, error) {
	idx, err := buildIndex(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect vector index: %w", err)
	}
	m := buildModel()
	assistant := cora.New(m, idx, func(o *cora.Options) {
		o.Config = cfg
		o.Translator = translate.NewClient(cfg.TranslatorURL, func(to *translate.Options) {
			to.Logger = logger
		})
		o.Compressor = memory.NewCompressor(m, func(mo *memory.Options) {
			mo.SummaryWindow = cfg.SummaryWindow
			mo.Logger = logger
		})
		o.Logger = logger
	})
	return assistant, nil
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			if addr != "" {
				cfg.ListenAddr = addr
			}
			logger := newLogger()

			assistant, err := buildAssistant(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer assistant.Close()

			srv := server.New(assistant, func(o *server.Options) {
				o.Logger = logger
			})
			return srv.Run(cfg.ListenAddr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides CORA_LISTEN_ADDR)")
	return cmd
}

func indexCmd() *cobra.Command {
	var (
		dataDir string
		reset   bool
		stats   bool
		yes     bool
	)
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index knowledge base files into the vector store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			logger := newLogger()
			ctx := cmd.Context()

			idx, err := buildIndex(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("connect vector index: %w", err)
			}
			indexer := ingest.New(idx, func(o *ingest.Options) {
				o.Logger = logger
			})

			if stats {
				count, err := indexer.Count(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("Documents indexed: %d\n", count)
				return nil
			}

			if reset {
				if !yes && !confirm("This will delete all indexed data. Continue? (y/n): ") {
					fmt.Println("Aborted.")
					return nil
				}
				if err := indexer.Reset(ctx); err != nil {
					return fmt.Errorf("reset index: %w", err)
				}
				fmt.Println("Vector store reset.")
			}

			if _, err := os.Stat(dataDir); err != nil {
				return fmt.Errorf("data directory not found: %s", dataDir)
			}

			result, err := indexer.IndexDirectory(ctx, dataDir)
			if err != nil {
				return err
			}
			fmt.Printf("Indexed %d documents (%d article variants, %d pdf chunks, %d skipped)\n",
				result.Total(), result.Articles, result.PDFChunks, result.Skipped)

			count, err := indexer.Count(ctx)
			if err == nil {
				fmt.Printf("Total in vector store: %d\n", count)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dataDir, "data-dir", "./data", "directory of JSON and PDF knowledge files")
	cmd.Flags().BoolVar(&reset, "reset", false, "reset the vector store before indexing")
	cmd.Flags().BoolVar(&stats, "stats", false, "print vector store statistics and exit")
	cmd.Flags().BoolVar(&yes, "yes", false, "skip the reset confirmation prompt")
	return cmd
}

func askCmd() *cobra.Command {
	var (
		language string
		appName  string
		session  string
	)
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a single question from the command line",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			logger := newLogger()

			assistant, err := buildAssistant(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer assistant.Close()

			answer, err := assistant.Ask(cmd.Context(), cora.AskRequest{
				SessionID: session,
				Question:  strings.Join(args, " "),
				Language:  language,
				AppName:   appName,
			})
			if err != nil {
				return err
			}

			fmt.Println(answer.Answer)
			if answer.Kind == core.Answered {
				fmt.Printf("\nConfidence: %s  Sources: %d  Session: %s\n",
					answer.Confidence, len(answer.Sources), answer.SessionID)
			}
			if answer.Err != nil {
				return answer.Err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&language, "language", "", "question language (en, ar, ku; empty = auto)")
	cmd.Flags().StringVar(&appName, "app", "", "restrict retrieval to one app")
	cmd.Flags().StringVar(&session, "session", "", "session id for multi-turn conversations")
	return cmd
}

func confirm(prompt string) bool {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(line), "y")
}
