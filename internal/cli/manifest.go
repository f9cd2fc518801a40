package cli

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"change-manifest/internal/app"
)

type manifestOptions struct {
	Connection           connectionOptions
	Server               string
	BuildType            string
	Project              string
	Build                string
	ReferenceBuild       string
	From                 string
	To                   string
	UseBuildSystemIssues bool
	Recurse              bool
	MappingFile          string
	Output               string
	Format               string
	JiraURL              string
	JiraUser             string
	JiraToken            string
	JiraProjects         []string
	GitHubOwner          string
	GitHubRepo           string
	GitHubToken          string
	GitHubURL            string
}

func newManifestCommand() *cobra.Command {
	opts := manifestOptions{}
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Create the change manifest of a build range",
		Long: "Collects the changes, issues and NuGet package changes between two builds of a\n" +
			"TeamCity build configuration. With --recurse, modified packages are followed into\n" +
			"the build configurations that produced them.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runManifest(cmd.Context(), cmd, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.Server, "server", "", "TeamCity server URL")
	cmd.Flags().StringVar(&opts.BuildType, "build-type", "", "Build configuration id")
	cmd.Flags().StringVar(&opts.Project, "project", "", "Project name (with --build)")
	cmd.Flags().StringVar(&opts.Build, "build", "", "Build configuration name (with --project)")
	cmd.Flags().StringVar(&opts.ReferenceBuild, "reference-build", "", "Reference build configuration id recorded in the manifest")
	cmd.Flags().StringVar(&opts.From, "from", "", "Build number to start after (default: latest successful build)")
	cmd.Flags().StringVar(&opts.To, "to", "", "Build number to end at (default: running build)")
	cmd.Flags().BoolVar(&opts.UseBuildSystemIssues, "build-system-issues", true, "Take issues from TeamCity instead of scanning change comments")
	cmd.Flags().BoolVar(&opts.Recurse, "recurse", false, "Follow modified NuGet packages into their producing builds")
	cmd.Flags().StringVar(&opts.MappingFile, "mapping-file", "", "Package build mapping file (YAML or JSON)")
	cmd.Flags().StringVar(&opts.Output, "output", "", "Manifest output path (default: stdout)")
	cmd.Flags().StringVar(&opts.Format, "format", "yaml", "Manifest format: yaml|json")
	cmd.Flags().StringVar(&opts.JiraURL, "jira-url", "", "JIRA base URL used to resolve issue keys")
	cmd.Flags().StringVar(&opts.JiraUser, "jira-user", "", "JIRA user for basic auth")
	cmd.Flags().StringVar(&opts.JiraToken, "jira-token", "", "JIRA API token")
	cmd.Flags().StringSliceVar(&opts.JiraProjects, "jira-project", nil, "Limit JIRA keys to these project keys")
	cmd.Flags().StringVar(&opts.GitHubOwner, "github-owner", "", "GitHub repository owner for #123 references")
	cmd.Flags().StringVar(&opts.GitHubRepo, "github-repo", "", "GitHub repository name for #123 references")
	cmd.Flags().StringVar(&opts.GitHubToken, "github-token", "", "GitHub token")
	cmd.Flags().StringVar(&opts.GitHubURL, "github-url", "", "GitHub Enterprise API URL (e.g., https://ghe.example.com/api/v3/)")
	addConnectionFlags(cmd, &opts.Connection)

	_ = viper.BindPFlag("server", cmd.Flags().Lookup("server"))
	_ = viper.BindPFlag("build_type", cmd.Flags().Lookup("build-type"))
	_ = viper.BindPFlag("project", cmd.Flags().Lookup("project"))
	_ = viper.BindPFlag("build", cmd.Flags().Lookup("build"))
	_ = viper.BindPFlag("reference_build", cmd.Flags().Lookup("reference-build"))
	_ = viper.BindPFlag("from", cmd.Flags().Lookup("from"))
	_ = viper.BindPFlag("to", cmd.Flags().Lookup("to"))
	_ = viper.BindPFlag("build_system_issues", cmd.Flags().Lookup("build-system-issues"))
	_ = viper.BindPFlag("recurse", cmd.Flags().Lookup("recurse"))
	_ = viper.BindPFlag("mapping_file", cmd.Flags().Lookup("mapping-file"))
	_ = viper.BindPFlag("output", cmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("format", cmd.Flags().Lookup("format"))
	_ = viper.BindPFlag("jira_url", cmd.Flags().Lookup("jira-url"))
	_ = viper.BindPFlag("jira_user", cmd.Flags().Lookup("jira-user"))
	_ = viper.BindPFlag("jira_token", cmd.Flags().Lookup("jira-token"))
	_ = viper.BindPFlag("jira_projects", cmd.Flags().Lookup("jira-project"))
	_ = viper.BindPFlag("github_owner", cmd.Flags().Lookup("github-owner"))
	_ = viper.BindPFlag("github_repo", cmd.Flags().Lookup("github-repo"))
	_ = viper.BindPFlag("github_token", cmd.Flags().Lookup("github-token"))
	_ = viper.BindPFlag("github_url", cmd.Flags().Lookup("github-url"))

	return cmd
}

func runManifest(ctx context.Context, cmd *cobra.Command, opts manifestOptions, stdout io.Writer) error {
	service := newAppService()
	req := app.ManifestRequest{
		Server: opts.Connection.request(cmd, resolveString(cmd, opts.Server, "server", "server")),
		Issues: app.IssueTrackerRequest{
			JiraURL:      resolveString(cmd, opts.JiraURL, "jira_url", "jira-url"),
			JiraUser:     resolveString(cmd, opts.JiraUser, "jira_user", "jira-user"),
			JiraToken:    resolveString(cmd, opts.JiraToken, "jira_token", "jira-token"),
			JiraProjects: resolveStrings(cmd, opts.JiraProjects, "jira_projects", "jira-project"),
			GitHubOwner:  resolveString(cmd, opts.GitHubOwner, "github_owner", "github-owner"),
			GitHubRepo:   resolveString(cmd, opts.GitHubRepo, "github_repo", "github-repo"),
			GitHubToken:  resolveString(cmd, opts.GitHubToken, "github_token", "github-token"),
			GitHubURL:    resolveString(cmd, opts.GitHubURL, "github_url", "github-url"),
		},
		BuildTypeID:          resolveString(cmd, opts.BuildType, "build_type", "build-type"),
		ProjectName:          resolveString(cmd, opts.Project, "project", "project"),
		BuildName:            resolveString(cmd, opts.Build, "build", "build"),
		ReferenceBuild:       resolveString(cmd, opts.ReferenceBuild, "reference_build", "reference-build"),
		From:                 resolveString(cmd, opts.From, "from", "from"),
		To:                   resolveString(cmd, opts.To, "to", "to"),
		UseBuildSystemIssues: resolveBool(cmd, opts.UseBuildSystemIssues, "build_system_issues", "build-system-issues"),
		Recurse:              resolveBool(cmd, opts.Recurse, "recurse", "recurse"),
		MappingFile:          resolveString(cmd, opts.MappingFile, "mapping_file", "mapping-file"),
		Output:               resolveString(cmd, opts.Output, "output", "output"),
		Format:               resolveString(cmd, opts.Format, "format", "format"),
	}
	result, err := service.Manifest(ctx, req)
	if err != nil {
		return err
	}

	// The manifest itself went to stdout; keep the summary off it.
	summaryOut := stdout
	if path := strings.TrimSpace(result.OutputPath); path == "" || path == "-" {
		summaryOut = os.Stderr
	}
	renderSummary(summaryOut, result.Manifest)
	return nil
}
