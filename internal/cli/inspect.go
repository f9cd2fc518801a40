package cli

import (
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"change-manifest/internal/app"
)

type inspectOptions struct {
	Manifest string
}

func newInspectCommand() *cobra.Command {
	opts := inspectOptions{}
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Summarize a written change manifest",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInspect(cmd, opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.Manifest, "manifest", "", "Manifest path (YAML or JSON)")
	_ = viper.BindPFlag("manifest", cmd.Flags().Lookup("manifest"))
	return cmd
}

func runInspect(cmd *cobra.Command, opts inspectOptions, out io.Writer) error {
	service := newAppService()
	result, err := service.Inspect(app.InspectRequest{
		ManifestPath: resolveString(cmd, opts.Manifest, "manifest", "manifest"),
	})
	if err != nil {
		return err
	}
	renderSummary(out, result.Manifest)
	renderPackageChanges(out, result.Manifest)
	renderGenerationLog(out, result.Manifest)
	return nil
}
