package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	generateParams []string
	generateForce  bool
	generateJSON   bool
)

var generateCmd = &cobra.Command{
	Use:   "generate <model-id>",
	Short: "Generate (or reuse) a contract for a model and parameter set",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		params, err := parseParams(generateParams)
		if err != nil {
			return err
		}

		artifact, err := e.svc.Generate(ctx, args[0], params, generateForce)
		if err != nil {
			return err
		}

		if generateJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(artifact)
		}

		fmt.Printf("version %d  fingerprint %s\n%s\n", artifact.Version, artifact.Fingerprint, artifact.FilePath)
		return nil
	},
}

func init() {
	generateCmd.Flags().StringArrayVar(&generateParams, "param", nil, "query parameter as key=value (repeatable)")
	generateCmd.Flags().BoolVar(&generateForce, "force", false, "regenerate even if an up-to-date artifact exists")
	generateCmd.Flags().BoolVar(&generateJSON, "json", false, "print the full artifact as JSON")
	rootCmd.AddCommand(generateCmd)
}
