package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/courtneys-list/vendors/internal/reconcile"
)

var (
	flagCommunity      string
	flagVendorID       string
	flagRatingIDs      []string
	flagCrossCommunity bool

	createSurveyName string
	createCategory   string
	createName       string
	createPhone      string
	createPlaceID    string
)

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Show reconciliation progress for a community",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		p, err := env.Matcher.Progress(cmd.Context(), flagCommunity)
		if err != nil {
			return err
		}
		return printJSON(cmd, p)
	},
}

var matchesCmd = &cobra.Command{
	Use:       "matches exact|fuzzy|unmatched",
	Short:     "List candidate matches for a community",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"exact", "fuzzy", "unmatched"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		var out any
		switch reconcile.Tab(args[0]) {
		case reconcile.TabExact:
			out, err = env.Matcher.ExactMatches(ctx, flagCommunity)
		case reconcile.TabFuzzy:
			out, err = env.Matcher.FuzzyMatches(ctx, flagCommunity)
		default:
			out, err = env.Matcher.Unmatched(ctx, flagCommunity)
		}
		if err != nil {
			return err
		}
		return printJSON(cmd, out)
	},
}

var approveCmd = &cobra.Command{
	Use:   "approve",
	Short: "Link staged ratings to a vendor",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		n, err := env.Approver.Approve(cmd.Context(), flagCommunity, flagRatingIDs, flagVendorID,
			reconcile.ApproveOptions{CrossCommunity: flagCrossCommunity})
		if err != nil {
			return err
		}
		return printJSON(cmd, map[string]int64{"updated_count": n})
	},
}

var approveExactCmd = &cobra.Command{
	Use:   "approve-exact",
	Short: "Approve every same-community exact match",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Bulk.ApproveAllExact(cmd.Context(), flagCommunity)
		if err != nil {
			return err
		}
		if err := printJSON(cmd, res); err != nil {
			return err
		}
		if res.Failed() > 0 {
			zap.L().Warn("some exact groups failed", zap.Int("failed", res.Failed()))
			return res.Err()
		}
		return nil
	},
}

var createVendorCmd = &cobra.Command{
	Use:   "create-vendor",
	Short: "Create a vendor from a survey name and link its pending ratings",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		name := createName
		if name == "" {
			name = createSurveyName
		}
		id, err := env.Approver.CreateVendorFromSurvey(cmd.Context(), reconcile.CreateVendorRequest{
			SurveyName: createSurveyName,
			Category:   createCategory,
			VendorName: name,
			Phone:      createPhone,
			Community:  flagCommunity,
			PlaceID:    createPlaceID,
			RatingIDs:  flagRatingIDs,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd, map[string]string{"new_vendor_id": id})
	},
}

var copyVendorCmd = &cobra.Command{
	Use:   "copy-vendor",
	Short: "Copy a vendor into another community, optionally linking ratings",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if flagVendorID == "" {
			return eris.New("--vendor is required")
		}
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		id, n, err := env.Approver.CopyAndLink(cmd.Context(), flagVendorID, flagCommunity, flagRatingIDs)
		if err != nil {
			return err
		}
		return printJSON(cmd, map[string]any{"new_vendor_id": id, "updated_count": n})
	},
}

func init() {
	for _, c := range []*cobra.Command{progressCmd, matchesCmd, approveCmd, approveExactCmd, createVendorCmd, copyVendorCmd} {
		c.Flags().StringVar(&flagCommunity, "community", "", "community name (required)")
		_ = c.MarkFlagRequired("community")
		rootCmd.AddCommand(c)
	}

	approveCmd.Flags().StringVar(&flagVendorID, "vendor", "", "vendor id (required)")
	approveCmd.Flags().StringSliceVar(&flagRatingIDs, "ids", nil, "staged rating ids")
	approveCmd.Flags().BoolVar(&flagCrossCommunity, "cross-community", false, "allow a vendor from another community")
	_ = approveCmd.MarkFlagRequired("vendor")

	createVendorCmd.Flags().StringVar(&createSurveyName, "survey-name", "", "vendor name as staged (required)")
	createVendorCmd.Flags().StringVar(&createCategory, "category", "", "vendor category (required)")
	createVendorCmd.Flags().StringVar(&createName, "name", "", "vendor display name (default survey name)")
	createVendorCmd.Flags().StringVar(&createPhone, "phone", "", "vendor phone")
	createVendorCmd.Flags().StringVar(&createPlaceID, "place-id", "", "external place id")
	createVendorCmd.Flags().StringSliceVar(&flagRatingIDs, "ids", nil, "staged rating ids (default all matching survey name)")
	_ = createVendorCmd.MarkFlagRequired("survey-name")
	_ = createVendorCmd.MarkFlagRequired("category")

	copyVendorCmd.Flags().StringVar(&flagVendorID, "vendor", "", "source vendor id (required)")
	copyVendorCmd.Flags().StringSliceVar(&flagRatingIDs, "ids", nil, "staged rating ids to link to the copy")
}
