package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"rechtskern/internal/adapter"
	"rechtskern/internal/config"
	"rechtskern/internal/corpus"
	"rechtskern/internal/ingest"
	"rechtskern/internal/logging"
	"rechtskern/internal/registry"
	"rechtskern/internal/shell"
)

const version = "0.3.0"

var (
	// Global flags
	verbose    bool
	configPath string

	// Logger
	logger *zap.Logger

	cfg   *config.Config
	store *corpus.Store
	reg   *registry.Registry
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "rechtskern",
	Short: "rechtskern - German legal research retrieval core",
	Long: `rechtskern serves typed legal-research tools over a curated corpus of
German federal law: statute and case-law search, citation parsing and
validation, currency checks, and EU cross-reference analysis.

The corpus is a read-only sqlite snapshot produced by external ingestion
pipelines; without it a small embedded seed set keeps the citation tools
usable.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := logging.Init(logging.Options{
			Dir:        cfg.Logging.Dir,
			Debug:      cfg.Logging.Debug || verbose,
			Categories: cfg.Logging.Categories,
		}); err != nil {
			return fmt.Errorf("init logging: %w", err)
		}
		logging.Boot("rechtskern %s starting (db=%s)", version, cfg.DatabasePath)

		store = corpus.New(cfg.DatabasePath, "de")
		runner := ingest.NewRunner(cfg.Ingestion)
		german, err := adapter.NewGerman(store, runner, cfg.SeedEnabled())
		if err != nil {
			return fmt.Errorf("build german adapter: %w", err)
		}
		reg = registry.New()
		if err := reg.Register(german); err != nil {
			return fmt.Errorf("register german adapter: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			_ = store.Close()
		}
		logging.Sync()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// serveCmd reads one JSON tool call per stdin line and writes one envelope
// per stdout line.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve tool calls over stdin/stdout (one JSON object per line)",
	Long: `Reads tool calls as JSON lines from stdin and writes one result envelope
per line to stdout:

  {"name":"search_documents","arguments":{"country":"de","query":"§ 823 BGB"}}

A malformed line yields an invalid_json envelope; the loop never aborts on
bad input.`,
	RunE: runServe,
}

// countriesCmd lists the registered jurisdictions.
var countriesCmd = &cobra.Command{
	Use:   "countries",
	Short: "List registered jurisdictions and their capabilities",
	RunE:  runCountries,
}

// statsCmd prints corpus diagnostics.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print corpus row counts, capabilities, and snapshot metadata",
	RunE:  runStats,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("rechtskern %s\n", version)
	},
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sh := shell.New(reg)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	enc := json.NewEncoder(os.Stdout)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		env := sh.HandleJSON(ctx, line)
		if err := enc.Encode(env); err != nil {
			return fmt.Errorf("write envelope: %w", err)
		}
	}
	return scanner.Err()
}

func runCountries(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	for _, a := range reg.All() {
		desc := a.Descriptor()
		caps := a.Capabilities(ctx)
		fmt.Printf("%s\t%s\tcapabilities: %v\n", desc.JurisdictionCode, desc.Name, caps.List())
	}
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	if !store.Available() {
		fmt.Println("corpus: unavailable (no database file)")
		return nil
	}

	meta := store.Metadata()
	if meta.Tier != "" || meta.BuiltAt != "" {
		fmt.Printf("snapshot: tier=%s schema=%s built=%s builder=%s\n",
			meta.Tier, meta.SchemaVersion, meta.BuiltAt, meta.Builder)
	}
	fmt.Printf("capabilities: %v\n", store.Capabilities().List())

	counts, err := store.Counts(ctx)
	if err != nil {
		return err
	}
	for _, table := range []string{"statutes", "law_documents", "case_law_documents", "preparatory_works", "ingestion_runs"} {
		if n, ok := counts[table]; ok {
			fmt.Printf("%-22s %d\n", table, n)
		}
	}

	if run, err := store.LastIngestionRun(ctx); err == nil && run != nil {
		fmt.Printf("last ingestion: source=%v status=%v started=%v\n",
			run["sourceId"], run["status"], run["startedAt"])
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "rechtskern.json", "path to config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(countriesCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
