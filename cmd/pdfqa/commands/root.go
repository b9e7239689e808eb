package commands

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pdfqa/internal/chunker"
	"pdfqa/internal/config"
	"pdfqa/internal/embedding"
	"pdfqa/internal/loader"
	"pdfqa/internal/logging"
	"pdfqa/internal/service"
	"pdfqa/internal/tui"
)

const defaultTUILogFile = "pdfqa.log"

// rootFlags are shared by every subcommand and override config file values.
type rootFlags struct {
	configPath string
	docsDir    string
	indexDir   string
	rebuild    bool
	debug      bool
	topK       int
}

// app is the assembled retrieval stack for one command invocation.
type app struct {
	cfg      *config.AppConfig
	logger   *zap.Logger
	pipeline *service.Pipeline
}

// NewRootCmd creates the root command. Without a subcommand it indexes the
// document folder and opens the interactive UI.
func NewRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:   "pdfqa",
		Short: "Ask questions against a folder of PDFs",
		Long: `pdfqa indexes the PDFs in a folder and retrieves the passages closest
to a free-text question. It returns matching passages, not generated answers.

Examples:
  pdfqa --docs ./manuals
  pdfqa index --rebuild
  pdfqa ask -k 5 "how often should the filter be replaced?"
  pdfqa ask --format json "battery capacity"`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, flags)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "Path to YAML config file (default ./config.yaml or ~/.config/pdfqa/config.yaml)")
	pf.StringVar(&flags.docsDir, "docs", "", "Directory containing the documents to index")
	pf.StringVar(&flags.indexDir, "index-dir", "", "Directory the vector index is persisted in")
	pf.BoolVar(&flags.rebuild, "rebuild", false, "Ignore any persisted index and rebuild it")
	pf.BoolVar(&flags.debug, "debug", false, "Enable debug logging")
	pf.IntVarP(&flags.topK, "top-k", "k", 0, "Number of matches to retrieve (default from config)")

	cmd.AddCommand(newIndexCmd(flags), newAskCmd(flags), NewVersionCmd())
	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(flags *rootFlags) (*config.AppConfig, error) {
	var (
		cfg *config.AppConfig
		err error
	)
	if flags.configPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(flags.configPath)
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if flags.docsDir != "" {
		cfg.Documents.Dir = flags.docsDir
	}
	if flags.indexDir != "" {
		cfg.Index.Dir = flags.indexDir
	}
	if flags.rebuild {
		cfg.Index.Rebuild = true
	}
	if flags.topK > 0 {
		cfg.Query.TopK = flags.topK
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setup loads config and wires loader, chunker, embedder and pipeline.
// In interactive mode logs always go to a file so the screen stays clean.
func setup(flags *rootFlags, interactive bool) (*app, error) {
	_ = godotenv.Load()

	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	logFile := cfg.Log.File
	if interactive && logFile == "" {
		logFile = defaultTUILogFile
	}
	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Debug: flags.debug, File: logFile})
	if err != nil {
		return nil, err
	}

	ch, err := chunker.NewRecursiveChunker(cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	emb, err := embedding.New(cfg.Embedder)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	l := loader.New(logger.Named("loader"), loader.Options{Extensions: cfg.Documents.Extensions})
	p := service.NewPipeline(l, ch, emb, service.Options{
		IndexDir: cfg.Index.Dir,
		Metric:   cfg.Index.Metric,
		Rebuild:  cfg.Index.Rebuild,
	}, logger.Named("pipeline"))

	logger.Debug("configured",
		zap.String("docs", cfg.Documents.Dir),
		zap.String("index", cfg.Index.Dir),
		zap.String("embedder", emb.Name()),
		zap.Int("chunk_size", cfg.Chunker.ChunkSize),
		zap.Int("chunk_overlap", cfg.Chunker.ChunkOverlap))
	return &app{cfg: cfg, logger: logger, pipeline: p}, nil
}

func runTUI(cmd *cobra.Command, flags *rootFlags) error {
	a, err := setup(flags, true)
	if err != nil {
		return err
	}
	defer func() { _ = a.logger.Sync() }()

	fmt.Fprintf(cmd.OutOrStdout(), "Indexing %s...\n", a.cfg.Documents.Dir)
	status, err := a.pipeline.Initialize(cmd.Context(), a.cfg.Documents.Dir)
	if err != nil {
		return fmt.Errorf("initializing index: %w", err)
	}

	m := tui.New(a.pipeline, status, tui.Options{
		TopK:            a.cfg.Query.TopK,
		MaxSnippetChars: a.cfg.Query.MaxSnippetChars,
		DocsDir:         a.cfg.Documents.Dir,
	})
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("running ui: %w", err)
	}
	return nil
}
