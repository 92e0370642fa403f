package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Rafael-2109/frete-sistema-sub002/internal/common/config"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/common/logger"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/models"
	"github.com/Rafael-2109/frete-sistema-sub002/internal/service"
)

// app holds what the subcommands share once the root has loaded config.
type app struct {
	configPath string
	jsonOut    bool
	domain     string

	zap *zap.Logger
	svc *service.Service
	res *service.Resources
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "nlq",
		Short: "Interpret and answer freight queries in Portuguese",
		Long: `nlq runs the query pipeline locally.

Available subcommands:
  analyze     - Show intent, entities, context and confidence
  orchestrate - Consult the specialist agents and print one answer
  refine      - Re-analyze with rewrites until confidence converges
  feedback    - Reinforce or contradict a learned interpretation
  registry    - List or validate the worker activity registry`,
		SilenceUsage:      true,
		PersistentPreRunE: a.open,
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.close()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default: configs/config.yaml)")
	root.PersistentFlags().BoolVar(&a.jsonOut, "json", false, "print JSON instead of text")

	root.AddCommand(newAnalyzeCmd(a), newOrchestrateCmd(a), newRefineCmd(a), newFeedbackCmd(a), newRegistryCmd(a))
	return root
}

func (a *app) open(cmd *cobra.Command, _ []string) error {
	var (
		cfg *config.Config
		err error
	)
	if a.configPath != "" {
		cfg, err = config.LoadFromFile(a.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	a.zap = logger.NewWithOutput(cfg.Logging.Level, cfg.Logging.Format, "stderr")
	a.svc, a.res, err = service.NewFromConfig(ctxOf(cmd), cfg, nil, logger.NewZapAdapter(a.zap))
	return err
}

func (a *app) close() error {
	var err error
	if a.svc != nil {
		err = a.svc.Close()
	}
	if a.res != nil {
		if cerr := a.res.Close(); err == nil {
			err = cerr
		}
	}
	if a.zap != nil {
		_ = a.zap.Sync()
	}
	return err
}

func (a *app) queryContext() *models.QueryContext {
	if a.domain == "" {
		return nil
	}
	return &models.QueryContext{DomainHint: models.Domain(a.domain)}
}

func (a *app) print(w io.Writer, v interface{}, text func(io.Writer)) error {
	if a.jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}

func ctxOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func printClarification(w io.Writer, c *models.ClarificationRequest) {
	fmt.Fprintln(w, "Preciso de mais detalhes:")
	for _, q := range c.Questions {
		fmt.Fprintf(w, "  - %s\n", q)
	}
	if len(c.Examples) > 0 {
		fmt.Fprintln(w, "Exemplos:")
		for _, e := range c.Examples {
			fmt.Fprintf(w, "  - %s\n", e)
		}
	}
}
