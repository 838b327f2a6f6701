package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/contract-cli/internal/model"
)

var artifactsCmd = &cobra.Command{
	Use:   "artifacts",
	Short: "Inspect generated contract artifacts",
}

var artifactsListModel string

var artifactsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active artifacts, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		artifacts, err := e.svc.ListActive(ctx, artifactsListModel)
		if err != nil {
			return err
		}
		if len(artifacts) == 0 {
			fmt.Fprintln(os.Stderr, "No active artifacts.")
			return nil
		}

		formatArtifactsList(os.Stdout, artifacts)
		return nil
	},
}

var (
	historyFingerprint string
	historyParams      []string
)

var artifactsHistoryCmd = &cobra.Command{
	Use:   "history <model-id>",
	Short: "Show the full version history for a model and parameter set",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		var artifacts []model.Artifact
		switch {
		case historyFingerprint != "":
			artifacts, err = e.svc.History(ctx, args[0], historyFingerprint)
		case len(historyParams) > 0:
			params, perr := parseParams(historyParams)
			if perr != nil {
				return perr
			}
			artifacts, err = e.svc.HistoryForParams(ctx, args[0], params)
		default:
			return eris.New("either --fingerprint or --param is required")
		}
		if err != nil {
			return err
		}
		if len(artifacts) == 0 {
			fmt.Fprintln(os.Stderr, "No artifacts for this model and parameter set.")
			return nil
		}

		formatArtifactsList(os.Stdout, artifacts)
		return nil
	},
}

func formatArtifactsList(w io.Writer, artifacts []model.Artifact) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tFINGERPRINT\tVERSION\tACTIVE\tPRIMARY\tGENERATED")
	for _, a := range artifacts {
		fingerprint := a.Fingerprint
		if len(fingerprint) > 12 {
			fingerprint = fingerprint[:12]
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%t\t%s\t%s\n",
			a.ModelID, fingerprint, a.Version, a.Active, a.Fields.Primary,
			a.GeneratedAt.Format("2006-01-02 15:04"))
	}
	tw.Flush() //nolint:errcheck
}

func init() {
	artifactsListCmd.Flags().StringVar(&artifactsListModel, "model", "", "filter by model id")
	artifactsHistoryCmd.Flags().StringVar(&historyFingerprint, "fingerprint", "", "parameter-set fingerprint")
	artifactsHistoryCmd.Flags().StringArrayVar(&historyParams, "param", nil, "query parameter as key=value (repeatable)")
	artifactsCmd.AddCommand(artifactsListCmd, artifactsHistoryCmd)
	rootCmd.AddCommand(artifactsCmd)
}
