package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var queryParams []string

var queryCmd = &cobra.Command{
	Use:   "query <sql>",
	Short: "Run an ad-hoc query through the configured executor",
	Long:  "Executes a raw query with :name placeholder substitution, for testing a model's queries before registering it.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		params, err := parseParams(queryParams)
		if err != nil {
			return err
		}

		rows, err := e.svc.TestQuery(ctx, args[0], params)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	},
}

func init() {
	queryCmd.Flags().StringArrayVar(&queryParams, "param", nil, "query parameter as key=value (repeatable)")
	rootCmd.AddCommand(queryCmd)
}
