package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"change-manifest/internal/app"
)

// connectionOptions holds the TeamCity credentials and HTTP tuning
// shared by every command that talks to a server.
type connectionOptions struct {
	Username         string
	Password         string
	Token            string
	HTTPTimeoutSec   int
	HTTPRetries      int
	HTTPRetryDelayMs int
	RateLimit        float64
}

func addConnectionFlags(cmd *cobra.Command, opts *connectionOptions) {
	cmd.Flags().StringVar(&opts.Username, "username", "", "TeamCity user for basic auth")
	cmd.Flags().StringVar(&opts.Password, "password", "", "TeamCity password for basic auth")
	cmd.Flags().StringVar(&opts.Token, "token", "", "TeamCity access token (takes precedence over basic auth)")
	cmd.Flags().IntVar(&opts.HTTPTimeoutSec, "http-timeout", 60, "HTTP timeout in seconds (0 = default)")
	cmd.Flags().IntVar(&opts.HTTPRetries, "http-retries", 3, "HTTP retries (0 = default)")
	cmd.Flags().IntVar(&opts.HTTPRetryDelayMs, "http-retry-delay-ms", 200, "HTTP retry base delay in ms (0 = default)")
	cmd.Flags().Float64Var(&opts.RateLimit, "rate-limit", 0, "Maximum requests per second per server (0 = unlimited)")

	_ = viper.BindPFlag("username", cmd.Flags().Lookup("username"))
	_ = viper.BindPFlag("password", cmd.Flags().Lookup("password"))
	_ = viper.BindPFlag("token", cmd.Flags().Lookup("token"))
	_ = viper.BindPFlag("http_timeout_sec", cmd.Flags().Lookup("http-timeout"))
	_ = viper.BindPFlag("http_retries", cmd.Flags().Lookup("http-retries"))
	_ = viper.BindPFlag("http_retry_delay_ms", cmd.Flags().Lookup("http-retry-delay-ms"))
	_ = viper.BindPFlag("rate_limit", cmd.Flags().Lookup("rate-limit"))
}

func (o connectionOptions) request(cmd *cobra.Command, serverURL string) app.ServerRequest {
	return app.ServerRequest{
		ServerURL:        serverURL,
		Username:         resolveString(cmd, o.Username, "username", "username"),
		Password:         resolveString(cmd, o.Password, "password", "password"),
		Token:            resolveString(cmd, o.Token, "token", "token"),
		HTTPTimeoutSec:   resolveInt(cmd, o.HTTPTimeoutSec, "http_timeout_sec", "http-timeout"),
		HTTPRetries:      resolveInt(cmd, o.HTTPRetries, "http_retries", "http-retries"),
		HTTPRetryDelayMs: resolveInt(cmd, o.HTTPRetryDelayMs, "http_retry_delay_ms", "http-retry-delay-ms"),
		RateLimit:        resolveFloat(cmd, o.RateLimit, "rate_limit", "rate-limit"),
	}
}

func resolveString(cmd *cobra.Command, value string, key string, flagName string) string {
	if cmd == nil {
		if value != "" {
			return value
		}
		return viper.GetString(key)
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	return viper.GetString(key)
}

func resolveStrings(cmd *cobra.Command, values []string, key string, flagName string) []string {
	if cmd == nil {
		if len(values) > 0 {
			return values
		}
		return viper.GetStringSlice(key)
	}
	if flagChanged(cmd, flagName) {
		return values
	}
	return viper.GetStringSlice(key)
}

func resolveBool(cmd *cobra.Command, value bool, key string, flagName string) bool {
	if cmd == nil {
		return value
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	return viper.GetBool(key)
}

func resolveInt(cmd *cobra.Command, value int, key string, flagName string) int {
	if cmd == nil {
		return value
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	return viper.GetInt(key)
}

func resolveFloat(cmd *cobra.Command, value float64, key string, flagName string) float64 {
	if cmd == nil {
		return value
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	return viper.GetFloat64(key)
}

func flagChanged(cmd *cobra.Command, name string) bool {
	if cmd == nil || strings.TrimSpace(name) == "" {
		return false
	}
	if flag := cmd.Flags().Lookup(name); flag != nil {
		return flag.Changed
	}
	if flag := cmd.PersistentFlags().Lookup(name); flag != nil {
		return flag.Changed
	}
	return false
}
