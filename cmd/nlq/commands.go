package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Rafael-2109/frete-sistema-sub002/internal/models"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <query>",
		Short: "Show intent, entities, context and confidence",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res := a.svc.Analyze(ctxOf(cmd), strings.Join(args, " "), a.queryContext())
			return a.print(cmd.OutOrStdout(), res, func(w io.Writer) {
				fmt.Fprintf(w, "Consulta normalizada: %s\n", res.NormalizedText)
				fmt.Fprintf(w, "Intenção: %s (%.2f)\n", res.Intent.Type, res.Intent.Confidence)
				fmt.Fprintf(w, "Domínio: %s\n", res.Context.BusinessDomain)
				fmt.Fprintf(w, "Período: %s\n", res.Context.TemporalScope.Label)
				for _, e := range res.Entities {
					fmt.Fprintf(w, "Entidade %s: %s\n", e.Type, e.RawText)
				}
				keys := make([]string, 0, len(res.Context.ImplicitFilters))
				for k := range res.Context.ImplicitFilters {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					fmt.Fprintf(w, "Filtro %s: %s\n", k, res.Context.ImplicitFilters[k])
				}
				fmt.Fprintf(w, "Confiança: %.2f\n", res.ConfidenceScore)
				if res.Clarification != nil {
					printClarification(w, res.Clarification)
				}
			})
		},
	}
	cmd.Flags().StringVar(&a.domain, "domain", "", "domain hint (deliveries, freight, orders, shipments, finance)")
	return cmd
}

func newOrchestrateCmd(a *app) *cobra.Command {
	var trace bool
	cmd := &cobra.Command{
		Use:   "orchestrate <query>",
		Short: "Consult the specialist agents and print one answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res := a.svc.Orchestrate(ctxOf(cmd), strings.Join(args, " "), a.queryContext())
			if !trace {
				res.Trace = nil
			}
			return a.print(cmd.OutOrStdout(), res, func(w io.Writer) {
				if res.Clarification != nil {
					printClarification(w, res.Clarification)
					return
				}
				fmt.Fprintln(w, res.Response.Text)
				if len(res.Response.ContributingAgents) > 0 {
					fmt.Fprintf(w, "\nAgentes: %s\n", strings.Join(res.Response.ContributingAgents, ", "))
				}
				for _, r := range res.Trace {
					status := string(r.Status)
					if r.Error != "" {
						status += ": " + r.Error
					}
					fmt.Fprintf(w, "[%s] %s\n", r.AgentID, status)
				}
			})
		},
	}
	cmd.Flags().StringVar(&a.domain, "domain", "", "domain hint (deliveries, freight, orders, shipments, finance)")
	cmd.Flags().BoolVar(&trace, "trace", false, "include every specialist response")
	return cmd
}

func newRefineCmd(a *app) *cobra.Command {
	var maxIterations int
	cmd := &cobra.Command{
		Use:   "refine <query>",
		Short: "Re-analyze with rewrites until confidence converges",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.svc.RefineWithBudget(ctxOf(cmd), strings.Join(args, " "), a.queryContext(), maxIterations)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), res, func(w io.Writer) {
				for _, it := range res.Trace {
					fmt.Fprintf(w, "%d. %q confiança=%.2f cobertura=%.2f estratégia=%s\n",
						it.Index+1, it.Query, it.Confidence, it.Coverage, it.Strategy)
				}
				fmt.Fprintf(w, "Consulta final: %s (convergiu: %t)\n", res.FinalQuery, res.Converged)
			})
		},
	}
	cmd.Flags().StringVar(&a.domain, "domain", "", "domain hint (deliveries, freight, orders, shipments, finance)")
	cmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "iteration budget (default from config)")
	return cmd
}

func newFeedbackCmd(a *app) *cobra.Command {
	var in models.FeedbackInput
	var outcome string
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Reinforce or contradict a learned interpretation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in.Outcome = models.FeedbackOutcome(outcome)
			rec, err := a.svc.RecordFeedback(ctxOf(cmd), in)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), rec, func(w io.Writer) {
				fmt.Fprintf(w, "Feedback %s registrado: %s %q -> %s\n", rec.ID, rec.Outcome, rec.PatternText, rec.Interpretation)
			})
		},
	}
	cmd.Flags().StringVar(&in.PatternType, "type", models.PatternIntent, "pattern type (intent, client_alias, domain, term)")
	cmd.Flags().StringVar(&in.PatternText, "text", "", "pattern text")
	cmd.Flags().StringVar(&in.Interpretation, "interpretation", "", "interpretation to reinforce or contradict")
	cmd.Flags().StringVar(&outcome, "outcome", string(models.FeedbackReinforce), "reinforce or contradict")
	cmd.Flags().StringVar(&in.Query, "query", "", "original query")
	cmd.Flags().StringVar(&in.Comment, "comment", "", "free-form comment")
	_ = cmd.MarkFlagRequired("text")
	_ = cmd.MarkFlagRequired("interpretation")
	return cmd
}
