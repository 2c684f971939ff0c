// Package main implements the ethicsd CLI: case registration, pipeline
// step control, candidate entity review, session commit, and decision
// point inspection.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ethicsd/internal/config"
	"github.com/fyrsmithlabs/ethicsd/internal/extraction"
	"github.com/fyrsmithlabs/ethicsd/internal/logging"
	"github.com/fyrsmithlabs/ethicsd/internal/ontology"
	"github.com/fyrsmithlabs/ethicsd/internal/pipeline"
	"github.com/fyrsmithlabs/ethicsd/internal/review"
	"github.com/fyrsmithlabs/ethicsd/internal/session"
	"github.com/fyrsmithlabs/ethicsd/internal/store"
	"github.com/fyrsmithlabs/ethicsd/internal/synthesis"
)

var (
	configPath string
	version    = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ethicsd",
	Short: "Ethics case extraction and decision synthesis pipeline",
	Long: `ethicsd extracts structured concepts from ethics case narratives,
holds them for human review, and synthesizes the decision points the case
turned on. Steps run in a fixed order: contextual extraction (1), its
review gate (1b), normative extraction (2), its review gate (2b),
temporal extraction (3), decision synthesis (4), alignment scoring (5).`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (YAML)")
	rootCmd.AddCommand(caseCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(entityCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(decisionCmd)
}

// app holds the wired service graph behind every subcommand.
type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	store      *store.Store
	controller *pipeline.Controller
	dispatcher *pipeline.Dispatcher
	sessions   *session.Manager
	review     *review.Service
	engine     *synthesis.Engine
}

// newApp loads configuration and wires every service. The caller must
// invoke close when done.
func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	st, err := store.Open(cfg.Database.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	extractor, err := extraction.New(cfg.Extraction.Provider, extraction.Config{
		Model:       cfg.Extraction.Model,
		APIKey:      cfg.Extraction.APIKey.Value(),
		BaseURL:     cfg.Extraction.BaseURL,
		MaxTokens:   cfg.Extraction.MaxTokens,
		SoftTimeout: cfg.Extraction.SoftTimeout.Duration(),
		MaxRetries:  cfg.Extraction.MaxRetries,
		RateLimit:   cfg.Extraction.RateLimit,
		Burst:       cfg.Extraction.Burst,
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to build extractor: %w", err)
	}

	var catalog ontology.Catalog
	if cfg.Ontology.BaseURL != "" {
		catalog, err = ontology.NewHTTPCatalog(cfg.Ontology.BaseURL, cfg.Ontology.Timeout.Duration())
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("failed to build ontology catalog: %w", err)
		}
	}

	chain := []synthesis.Synthesizer{
		synthesis.NewAlgorithmicSynthesizer(
			synthesis.NewRuleTable(synthesis.RulesFromConfig(cfg.Synthesis.ConflictRules))),
	}
	// the extraction client doubles as the generative fallback when the
	// provider supports it
	if generative, ok := extractor.(extraction.GenerativeClient); ok {
		chain = append(chain, synthesis.NewGenerativeSynthesizer(generative))
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		sessions: session.NewManager(st, extractor, logger),
		review:   review.NewService(st, catalog, logger),
		engine:   synthesis.NewEngine(st, chain, logger),
	}
	a.controller = pipeline.NewController(st, logger)
	a.dispatcher = pipeline.NewDispatcher(a.controller, logger,
		cfg.Pipeline.Workers, cfg.Extraction.HardTimeout.Duration())
	a.registerSteps()
	return a, nil
}

func (a *app) close() {
	a.dispatcher.Close()
	a.store.Close()
	_ = a.logger.Sync()
}

// withApp wires the service graph around a subcommand body.
func withApp(fn func(a *app, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()
		return fn(a, cmd, args)
	}
}
