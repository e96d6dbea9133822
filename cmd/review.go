package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/courtneys-list/vendors/internal/model"
	"github.com/courtneys-list/vendors/internal/reconcile"
)

var (
	reviewApproveExact bool
	reviewLookup       bool
)

type tabSummary struct {
	Count  int    `json:"count"`
	Loaded bool   `json:"loaded"`
	Error  string `json:"error,omitempty"`
}

func summarizeTab[T any](t reconcile.TabState[T]) tabSummary {
	s := tabSummary{Count: t.Count, Loaded: t.Loaded}
	if t.Err != nil {
		s.Error = t.Err.Error()
	}
	return s
}

type reviewSnapshot struct {
	Community string                       `json:"community"`
	Tabs      map[reconcile.Tab]tabSummary `json:"tabs"`
	Progress  *model.Progress              `json:"progress,omitempty"`
	Done      bool                         `json:"done"`
	Batch     *reconcile.BatchResult       `json:"approve_exact,omitempty"`
	Forms     []reconcile.VendorForm       `json:"vendor_forms,omitempty"`
}

func snapshot(r *reconcile.Review) reviewSnapshot {
	tabs := map[reconcile.Tab]tabSummary{
		reconcile.TabExact:     summarizeTab(r.Exact()),
		reconcile.TabFuzzy:     summarizeTab(r.Fuzzy()),
		reconcile.TabUnmatched: summarizeTab(r.Unmatched()),
	}
	s := reviewSnapshot{Community: r.Community(), Tabs: tabs, Done: r.Done()}
	if p, err := r.Progress(); err == nil {
		s.Progress = &p
	}
	return s
}

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Load a reconciliation session for a community and summarize it",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		r := reconcile.NewReview(env.Matcher, env.Approver, env.Bulk, env.Places)
		if err := r.SelectCommunity(ctx, flagCommunity); err != nil {
			return err
		}

		var batch *reconcile.BatchResult
		if reviewApproveExact {
			batch, err = r.ApproveAllExact(ctx)
			if err != nil {
				return err
			}
		}

		var forms []reconcile.VendorForm
		if reviewLookup {
			for _, u := range r.Unmatched().Items {
				form := reconcile.NewVendorForm(u)
				if env.Places != nil {
					enriched, err := r.LookupPlace(ctx, form)
					if err != nil {
						zap.L().Warn("place lookup failed", zap.String("vendor", u.VendorName), zap.Error(err))
					} else {
						form = enriched
					}
				}
				forms = append(forms, form)
			}
		}

		s := snapshot(r)
		s.Batch = batch
		s.Forms = forms
		if err := printJSON(cmd, s); err != nil {
			return err
		}
		if batch != nil {
			return batch.Err()
		}
		return nil
	},
}

func init() {
	reviewCmd.Flags().StringVar(&flagCommunity, "community", "", "community name (required)")
	reviewCmd.Flags().BoolVar(&reviewApproveExact, "approve-exact", false, "approve every same-community exact group first")
	reviewCmd.Flags().BoolVar(&reviewLookup, "lookup", false, "pre-fill vendor forms for unmatched names, using places when configured")
	_ = reviewCmd.MarkFlagRequired("community")
	rootCmd.AddCommand(reviewCmd)
}
