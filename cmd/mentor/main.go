package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mathmentor/pkg/adapter"
	"mathmentor/pkg/agent"
	"mathmentor/pkg/config"
	"mathmentor/pkg/embedding"
	"mathmentor/pkg/hitl"
	"mathmentor/pkg/input"
	"mathmentor/pkg/memory"
	"mathmentor/pkg/pipeline"
	"mathmentor/pkg/rag"
)

var (
	adapterFlag string
	modelFlag   string
	verboseFlag bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mentor",
		Short: "Math tutoring pipeline with confidence-gated human checkpoints",
		Long: `Mentor turns a noisy math problem statement into a verified, explained
	answer. Each problem runs through parsing, routing, solving, verification,
	and explanation stages; low-confidence results pause for human review
	instead of being presented as fact.`,
	}

	rootCmd.PersistentFlags().BoolVar(&verboseFlag, "verbose", false, "enable debug logging")

	rootCmd.AddCommand(solveCmd())
	rootCmd.AddCommand(correctCmd())
	rootCmd.AddCommand(feedbackCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(patternsCmd())
	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(modelsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds the wired components shared by the subcommands. Components
// that need an LLM or an embedding key are nil until buildPipeline runs.
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	store       *memory.Store
	learner     *memory.PatternLearner
	corrections *hitl.CorrectionHandler

	engine  *embedding.CachedEngine
	vectors *rag.VectorStore
	orch    *pipeline.Orchestrator
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := zap.NewNop()
	if verboseFlag {
		logger, err = zap.NewDevelopment()
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}

	store, err := memory.NewStore(cfg.MemoryDBPath(), memory.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open problem memory: %w", err)
	}

	a := &app{
		cfg:         cfg,
		logger:      logger,
		store:       store,
		learner:     memory.NewPatternLearner(store),
		corrections: hitl.NewCorrectionHandler(store),
	}

	if cfg.GoogleAPIKey != "" {
		base, err := embedding.NewGenAIEngine(cfg.GoogleAPIKey, cfg.EmbeddingModel)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedding engine: %w", err)
		}
		limiter := embedding.NewRateLimiter(cfg.MinCallInterval)
		a.engine = embedding.NewCachedEngine(base, limiter, cfg.EmbeddingCachePath(), embedding.WithLogger(logger))

		a.vectors, err = rag.NewVectorStore(cfg.VectorDBPath(), a.engine, rag.WithStoreLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to open vector store: %w", err)
		}
	}

	return a, nil
}

func (a *app) close() {
	if a.vectors != nil {
		a.vectors.Close()
	}
	a.store.Close()
}

// buildPipeline selects an adapter and wires the five-stage orchestrator.
func (a *app) buildPipeline() error {
	target, err := selectAdapter(a.cfg)
	if err != nil {
		return err
	}
	model := modelFlag
	if model == "" {
		model = a.cfg.GenerationModel
	}

	if err := a.learner.LearnFromMemory(); err != nil {
		a.logger.Warn("pattern learning failed", zap.Error(err))
	}

	var retriever *rag.Retriever
	if a.vectors != nil {
		retriever = rag.NewRetriever(a.vectors, a.cfg.Retrieval.TopK, rag.WithRetrieverLogger(a.logger))
	}

	solverOpts := []agent.SolverOption{agent.WithHintProvider(a.learner)}
	if a.engine != nil {
		searcher := memory.NewSearcher(a.store, a.engine, a.cfg.Memory.SimilarityThreshold, a.cfg.Memory.MaxSimilarProblems, a.logger)
		solverOpts = append(solverOpts, agent.WithSimilarFinder(searcher))
	}

	a.orch = pipeline.NewOrchestrator(
		agent.NewParser(target, model, a.logger),
		agent.NewRouter(),
		agent.NewSolver(target, model, retriever, a.logger, solverOpts...),
		agent.NewVerifier(target, model, a.cfg.Thresholds.Verifier, a.logger),
		agent.NewExplainer(target, model, a.logger),
		pipeline.WithCorrectionHandler(a.corrections),
		pipeline.WithEvidenceDir(a.cfg.EvidenceDir()),
		pipeline.WithLogger(a.logger),
	)

	fmt.Fprintf(os.Stderr, "Using %s/%s\n", target.Name(), model)
	return nil
}

func selectAdapter(cfg *config.Config) (adapter.Adapter, error) {
	if adapterFlag != "" {
		if adapterFlag != "mock" && !cfg.HasAdapter(adapterFlag) {
			return nil, fmt.Errorf("adapter %q not available (missing API key)", adapterFlag)
		}
		return createAdapter(cfg, adapterFlag)
	}

	for _, name := range []string{"google", "anthropic", "openai"} {
		if cfg.HasAdapter(name) {
			return createAdapter(cfg, name)
		}
	}

	fmt.Fprintln(os.Stderr, "No API keys configured, using mock adapter.")
	return adapter.NewMockAdapter(), nil
}

func createAdapter(cfg *config.Config, name string) (adapter.Adapter, error) {
	switch name {
	case "google":
		return adapter.NewGoogleAdapter(cfg.GoogleAPIKey)
	case "anthropic":
		return adapter.NewAnthropicAdapter(cfg.AnthropicAPIKey)
	case "openai":
		return adapter.NewOpenAIAdapter(cfg.OpenAIAPIKey)
	case "mock":
		return adapter.NewMockAdapter(), nil
	default:
		return nil, fmt.Errorf("unknown adapter %q", name)
	}
}

func solveCmd() *cobra.Command {
	var batchFlag bool
	var noSaveFlag bool

	cmd := &cobra.Command{
		Use:   "solve [problem]",
		Short: "Solve a math problem through the full pipeline",
		Long: `Parses, routes, solves, verifies, and explains a math problem.

	The problem is read from the argument or from stdin. When a stage's
	confidence falls below its threshold, the run pauses and asks for
	review; use --batch to report the checkpoint and exit instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readProblem(args)
			if err != nil {
				return err
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.buildPipeline(); err != nil {
				return err
			}

			handler := input.NewTextHandler()
			processed := handler.ProcessText(raw)
			text := a.learner.ApplyCorrections(processed.Text)
			confidence, _ := handler.Assess(text)

			ctx := context.Background()
			result := a.orch.Solve(ctx, text, "text", confidence)

			// Parse checkpoint: confirm or correct the interpretation.
			if result.NeedsHITL && result.ParsedProblem != nil && result.Solution == nil {
				if batchFlag {
					printCheckpoint(result)
					return nil
				}
				corrected, err := promptCorrection(result)
				if err != nil {
					return err
				}
				result = a.orch.SolveWithCorrection(ctx, corrected, result.ParsedProblem)
			}

			printResult(result)
			if verboseFlag {
				printTraces(a.orch)
			}

			if !noSaveFlag && result.Success && result.FinalAnswer != "" {
				if err := a.saveRun(ctx, raw, result); err != nil {
					a.logger.Warn("failed to save run to memory", zap.Error(err))
				}
			}

			// Verification checkpoint: ask the user to accept or reject.
			if result.NeedsHITL && result.Verification != nil && !batchFlag {
				if err := a.promptReview(result); err != nil {
					return err
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&adapterFlag, "adapter", "", "override adapter (google, anthropic, openai, mock)")
	cmd.Flags().StringVar(&modelFlag, "model", "", "override model")
	cmd.Flags().BoolVar(&batchFlag, "batch", false, "never prompt; report checkpoints and exit")
	cmd.Flags().BoolVar(&noSaveFlag, "no-save", false, "do not record the run in problem memory")

	return cmd
}

func correctCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "correct [run-id] [corrected problem]",
		Short: "Re-solve a stored run with a corrected problem statement",
		Long: `Looks up a previous run in problem memory, records the correction so
	future inputs benefit from it, and re-runs the pipeline from routing.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			record, err := a.store.GetProblem(args[0])
			if err != nil {
				return err
			}
			if record == nil {
				return fmt.Errorf("no run %q in problem memory", args[0])
			}

			if err := a.buildPipeline(); err != nil {
				return err
			}

			original := &agent.ParsedProblem{
				ProblemText: record.ParsedQuestion,
				Topic:       record.Topic,
				Subtopic:    record.Subtopic,
			}
			result := a.orch.SolveWithCorrection(context.Background(), args[1], original)
			printResult(result)

			if result.Success && result.FinalAnswer != "" {
				if err := a.saveRun(context.Background(), args[1], result); err != nil {
					a.logger.Warn("failed to save run to memory", zap.Error(err))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&adapterFlag, "adapter", "", "override adapter (google, anthropic, openai, mock)")
	cmd.Flags().StringVar(&modelFlag, "model", "", "override model")

	return cmd
}

func readProblem(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("empty problem statement")
	}
	return text, nil
}

func printCheckpoint(result *pipeline.Result) {
	fmt.Fprintf(os.Stderr, "Review needed: %s\n", result.HITLReason)
	if result.ParsedProblem != nil {
		fmt.Fprintf(os.Stderr, "Interpreted as: %s (topic: %s)\n",
			result.ParsedProblem.ProblemText, result.ParsedProblem.Topic)
	}
}

func promptCorrection(result *pipeline.Result) (string, error) {
	printCheckpoint(result)
	fmt.Fprint(os.Stderr, "Corrected problem (enter to accept the interpretation): ")

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read correction: %w", err)
	}

	line = strings.TrimSpace(line)
	if line == "" {
		return result.ParsedProblem.ProblemText, nil
	}
	return line, nil
}

func (a *app) promptReview(result *pipeline.Result) error {
	fmt.Fprintf(os.Stderr, "\nThis solution needs review: %s\n", result.HITLReason)
	fmt.Fprint(os.Stderr, "Accept this solution? [y/N] ")

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return fmt.Errorf("failed to read response: %w", err)
	}

	feedback := memory.FeedbackIncorrect
	if answer := strings.ToLower(strings.TrimSpace(line)); answer == "y" || answer == "yes" {
		feedback = memory.FeedbackCorrect
	}
	return a.store.UpdateFeedback(result.RunID, feedback, "")
}

func printResult(result *pipeline.Result) {
	if result.ExplanationMarkdown != "" {
		fmt.Println(result.ExplanationMarkdown)
	}
	if result.FinalAnswer != "" {
		fmt.Printf("\nAnswer: %s (confidence %.2f)\n", result.FinalAnswer, result.Confidence)
	}
	if !result.Success {
		fmt.Fprintf(os.Stderr, "Run failed: %s\n", result.HITLReason)
	}
	fmt.Fprintf(os.Stderr, "Run %s (%.0fms)\n", result.RunID, result.TotalTimeMS)
}

func printTraces(orch *pipeline.Orchestrator) {
	w := tabwriter.NewWriter(os.Stderr, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "AGENT\tACTION\tSTATUS\tDURATION\tSUMMARY")
	for _, t := range orch.TraceSummary() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.Agent, t.Action, t.Status, t.Duration, t.Summary)
	}
	w.Flush()
}

// saveRun records a completed run so future problems can reuse it.
func (a *app) saveRun(ctx context.Context, raw string, result *pipeline.Result) error {
	record := &memory.ProblemMemory{
		ID:                 result.RunID,
		Timestamp:          time.Now().UTC(),
		InputType:          "text",
		RawInput:           raw,
		FinalAnswer:        result.FinalAnswer,
		VerifierConfidence: result.Confidence,
		Explanation:        result.ExplanationMarkdown,
	}
	if result.ParsedProblem != nil {
		record.ParsedQuestion = result.ParsedProblem.ProblemText
		record.Topic = result.ParsedProblem.Topic
		record.Subtopic = result.ParsedProblem.Subtopic
	}
	if result.Solution != nil {
		var steps []string
		for _, s := range result.Solution.Steps {
			steps = append(steps, s.Description)
		}
		record.Solution = strings.Join(steps, "\n")
	}

	if err := a.store.SaveProblem(record); err != nil {
		return err
	}

	if a.engine != nil && record.ParsedQuestion != "" {
		vec, err := a.engine.Embed(ctx, record.ParsedQuestion, embedding.TaskDocument)
		if err != nil {
			return err
		}
		return a.store.AttachEmbedding(record.ID, vec)
	}
	return nil
}

func feedbackCmd() *cobra.Command {
	var commentFlag string

	cmd := &cobra.Command{
		Use:   "feedback [run-id] [correct|incorrect]",
		Short: "Record feedback on a solved problem",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			feedback := args[1]
			if feedback != memory.FeedbackCorrect && feedback != memory.FeedbackIncorrect {
				return fmt.Errorf("feedback must be %q or %q", memory.FeedbackCorrect, memory.FeedbackIncorrect)
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.store.UpdateFeedback(args[0], feedback, commentFlag); err != nil {
				return err
			}
			fmt.Println("Feedback recorded.")
			return nil
		},
	}

	cmd.Flags().StringVar(&commentFlag, "comment", "", "optional comment")

	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show problem memory and knowledge base statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			stats, err := a.store.GetStats()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Problems solved\t%d\n", stats.TotalProblems)
			fmt.Fprintf(w, "Corrections\t%d\n", stats.TotalCorrections)
			for feedback, count := range stats.ByFeedback {
				fmt.Fprintf(w, "Feedback %s\t%d\n", feedback, count)
			}
			for topic, count := range stats.ByTopic {
				fmt.Fprintf(w, "Topic %s\t%d\n", topic, count)
			}

			if a.vectors != nil {
				if count, err := a.vectors.Count(); err == nil {
					fmt.Fprintf(w, "Knowledge chunks\t%d\n", count)
				}
			}

			return w.Flush()
		},
	}
}

func patternsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "patterns [topic] [subtopic]",
		Short: "Show learned solution patterns",
		Long:  "Learns from confirmed solutions in memory and shows what was learned.",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.learner.LearnFromMemory(); err != nil {
				return err
			}

			if len(args) == 0 {
				stats := a.learner.Stats()
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintf(w, "Topics with patterns\t%d\n", stats.TopicsWithPatterns)
				fmt.Fprintf(w, "Formulas\t%d\n", stats.TotalFormulas)
				fmt.Fprintf(w, "Methods\t%d\n", stats.TotalMethods)
				fmt.Fprintf(w, "Correction patterns\t%d\n", stats.CorrectionPatterns)
				return w.Flush()
			}

			topic := args[0]
			subtopic := ""
			if len(args) > 1 {
				subtopic = args[1]
			}

			hints := a.learner.HintsFor(topic, subtopic)
			printList("Suggested methods", hints.SuggestedMethods)
			printList("Relevant formulas", hints.RelevantFormulas)
			printList("Tips", hints.Tips)
			return nil
		},
	}
}

func printList(title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Printf("%s:\n", title)
	for _, item := range items {
		fmt.Printf("  - %s\n", item)
	}
}

func ingestCmd() *cobra.Command {
	var topicFlag string
	var categoryFlag string

	cmd := &cobra.Command{
		Use:   "ingest [path]",
		Short: "Ingest knowledge base documents",
		Long:  "Chunks and embeds .md and .txt files into the knowledge vector store.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if a.vectors == nil {
				return fmt.Errorf("ingestion requires a Google API key for embeddings")
			}

			var docs []rag.Document
			root := args[0]
			err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if d.IsDir() {
					return nil
				}
				ext := strings.ToLower(filepath.Ext(path))
				if ext != ".md" && ext != ".txt" {
					return nil
				}
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				source := strings.TrimSuffix(filepath.Base(path), ext)
				docs = append(docs, rag.ChunkDocuments(source, topicFlag, categoryFlag, string(data),
					a.cfg.Retrieval.ChunkSize, a.cfg.Retrieval.ChunkOverlap)...)
				return nil
			})
			if err != nil {
				return fmt.Errorf("failed to scan %s: %w", root, err)
			}
			if len(docs) == 0 {
				return fmt.Errorf("no .md or .txt files found under %s", root)
			}

			ingestor := rag.NewIngestor(a.vectors, a.logger)
			stored, err := ingestor.Ingest(context.Background(), docs)
			fmt.Printf("Stored %d of %d chunks.\n", stored, len(docs))
			return err
		},
	}

	cmd.Flags().StringVar(&topicFlag, "topic", "", "topic tag for the ingested documents")
	cmd.Flags().StringVar(&categoryFlag, "category", "", "category tag (e.g. formulas, examples)")

	return cmd
}

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List available adapters and models",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tMODELS\tSTATUS")

			for _, name := range []string{"google", "anthropic", "openai", "mock"} {
				if name != "mock" && !cfg.HasAdapter(name) {
					fmt.Fprintf(w, "%s\t\tno key\n", name)
					continue
				}
				a, err := createAdapter(cfg, name)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%s\tready\n", name, strings.Join(a.Models(), ", "))
			}

			return w.Flush()
		},
	}
}
