package main

import (
	"github.com/spf13/cobra"
)

var placesQuery string

var placesCmd = &cobra.Command{
	Use:   "places",
	Short: "Look up a business with the Places text search",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("places"); err != nil {
			return err
		}
		resp, err := initPlaces().TextSearch(cmd.Context(), placesQuery)
		if err != nil {
			return err
		}
		return printJSON(cmd, resp)
	},
}

func init() {
	placesCmd.Flags().StringVar(&placesQuery, "query", "", "search text, e.g. name and city (required)")
	_ = placesCmd.MarkFlagRequired("query")
	rootCmd.AddCommand(placesCmd)
}
