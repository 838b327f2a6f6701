package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/contract-cli/internal/model"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Manage contract model definitions",
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered models, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		models, err := e.store.ListModels(ctx)
		if err != nil {
			return err
		}
		if len(models) == 0 {
			fmt.Fprintln(os.Stderr, "No models registered.")
			return nil
		}

		formatModelsList(os.Stdout, models)
		return nil
	},
}

var modelsShowCmd = &cobra.Command{
	Use:   "show <model-id>",
	Short: "Show a model definition as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		m, err := e.svc.Model(ctx, args[0])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	},
}

var modelsImportTemplate string

var modelsImportCmd = &cobra.Command{
	Use:   "import <definition.yaml>",
	Short: "Register a model from a YAML definition and a .docx template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		raw, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "read definition %s", args[0])
		}

		var def model.Model
		if err := yaml.Unmarshal(raw, &def); err != nil {
			return eris.Wrap(err, "parse definition")
		}

		templatePath := modelsImportTemplate
		if templatePath == "" {
			templatePath = def.TemplatePath
		}
		if templatePath == "" {
			return eris.New("a template is required (--template or template_path in the definition)")
		}

		src, err := os.Open(templatePath)
		if err != nil {
			return eris.Wrapf(err, "open template %s", templatePath)
		}
		defer src.Close() //nolint:errcheck

		stored, err := e.files.SaveTemplate(templatePath, src)
		if err != nil {
			return err
		}
		def.TemplatePath = stored

		created, err := e.svc.CreateModel(ctx, def)
		if err != nil {
			return err
		}

		fmt.Printf("registered model %s (%s)\n", created.ID, created.Title)
		return nil
	},
}

var modelsDeleteCmd = &cobra.Command{
	Use:   "delete <model-id>",
	Short: "Delete a model and its template binary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.svc.DeleteModel(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("deleted model %s\n", args[0])
		return nil
	},
}

func formatModelsList(w io.Writer, models []model.Model) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tTYPE\tVARIABLES\tUPDATED")
	for _, m := range models {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			m.ID, m.Title, m.Type, len(m.Variables), m.UpdatedAt.Format("2006-01-02 15:04"))
	}
	tw.Flush() //nolint:errcheck
}

func init() {
	modelsImportCmd.Flags().StringVar(&modelsImportTemplate, "template", "", "path to the .docx template binary")
	modelsCmd.AddCommand(modelsListCmd, modelsShowCmd, modelsImportCmd, modelsDeleteCmd)
	rootCmd.AddCommand(modelsCmd)
}
