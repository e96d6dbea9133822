package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/courtneys-list/vendors/internal/survey"
)

var (
	importFile      string
	importCommunity string
	importPreview   bool
	importNew       bool
	importUpdate    bool
	importOnly      []string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a survey CSV or XLSX into the staging table",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		cm, err := survey.LoadCategoryMap(cfg.Import.CategoryMap)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		preview, err := env.Importer.PreviewFile(ctx, importFile, importCommunity, cm)
		if err != nil {
			return eris.Wrap(err, "import preview")
		}
		if importPreview {
			return printJSON(cmd, preview)
		}
		if !importNew && !importUpdate {
			return eris.New("nothing to do: pass --new and/or --update, or --preview")
		}

		res, err := env.Importer.Commit(ctx, preview, survey.CommitOptions{
			ImportNew:      importNew,
			UpdateExisting: importUpdate,
			Only:           importOnly,
		})
		if err != nil {
			return eris.Wrap(err, "import commit")
		}

		zap.L().Info("import complete",
			zap.String("file", importFile),
			zap.String("community", importCommunity),
			zap.Int("created", res.Created),
			zap.Int("updated", res.Updated),
			zap.Int64("staged", res.Staged),
		)
		return printJSON(cmd, res)
	},
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "", "path to survey .csv or .xlsx (required)")
	importCmd.Flags().StringVar(&importCommunity, "community", "", "target community (required)")
	importCmd.Flags().BoolVar(&importPreview, "preview", false, "print new/existing respondents without writing")
	importCmd.Flags().BoolVar(&importNew, "new", false, "create new respondents")
	importCmd.Flags().BoolVar(&importUpdate, "update", false, "add staged rows to existing respondents")
	importCmd.Flags().StringSliceVar(&importOnly, "only", nil, "limit to these respondent names")
	_ = importCmd.MarkFlagRequired("file")
	_ = importCmd.MarkFlagRequired("community")
	rootCmd.AddCommand(importCmd)
}
