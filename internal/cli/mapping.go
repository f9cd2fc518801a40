package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"change-manifest/internal/app"
)

type mappingBuildOptions struct {
	Connection connectionOptions
	Servers    []string
	Output     string
	Workers    int
}

func newMappingCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mapping",
		Short: "Manage the package build mapping file",
	}
	cmd.AddCommand(newMappingBuildCommand())
	return cmd
}

func newMappingBuildCommand() *cobra.Command {
	opts := mappingBuildOptions{}
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Scan TeamCity servers for the builds that publish NuGet packages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMappingBuild(cmd.Context(), cmd, opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringSliceVar(&opts.Servers, "server", nil, "TeamCity server URL (repeatable)")
	cmd.Flags().StringVar(&opts.Output, "output", "package-mappings.yaml", "Output path for the mapping file")
	cmd.Flags().IntVar(&opts.Workers, "workers", 4, "Concurrent build type scans per server (0 = default)")
	addConnectionFlags(cmd, &opts.Connection)

	_ = viper.BindPFlag("mapping_servers", cmd.Flags().Lookup("server"))
	_ = viper.BindPFlag("mapping_output", cmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("mapping_workers", cmd.Flags().Lookup("workers"))
	return cmd
}

func runMappingBuild(ctx context.Context, cmd *cobra.Command, opts mappingBuildOptions, out io.Writer) error {
	service := newAppService()
	servers := resolveStrings(cmd, opts.Servers, "mapping_servers", "server")
	if len(servers) == 0 {
		if server := viper.GetString("server"); server != "" {
			servers = []string{server}
		}
	}
	result, err := service.BuildMappings(ctx, app.MappingBuildRequest{
		Server:     opts.Connection.request(cmd, ""),
		ServerURLs: servers,
		Output:     resolveString(cmd, opts.Output, "mapping_output", "output"),
		Workers:    resolveInt(cmd, opts.Workers, "mapping_workers", "workers"),
	})
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "wrote %d package mappings from %d servers: %s\n", result.Mappings, result.Servers, result.OutputPath)
	return nil
}
