package app

import (
	"context"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"change-manifest/internal/core"
	"change-manifest/internal/ports"
	"change-manifest/internal/shared"
)

// BuildMappings scans the published artifacts of every configured server
// and writes the resulting package build mapping file.
func (s Service) BuildMappings(ctx context.Context, req MappingBuildRequest) (MappingBuildResult, error) {
	output := strings.TrimSpace(req.Output)
	if output == "" {
		return MappingBuildResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("output path is required")
	}
	if s.MappingStore == nil {
		return MappingBuildResult{}, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("mapping store is not configured")
	}
	var servers []string
	for _, server := range append(req.ServerURLs, req.Server.ServerURL) {
		if trimmed := strings.TrimSpace(server); trimmed != "" {
			servers = append(servers, shared.NormalizeServerURL(trimmed))
		}
	}
	servers = shared.UniqueFold(servers)

	factory := s.clientFactory(req.Server)
	catalogs := make([]ports.BuildCatalogPort, 0, len(servers))
	for _, server := range servers {
		client, err := factory.Client(server)
		if err != nil {
			return MappingBuildResult{}, err
		}
		catalogs = append(catalogs, client)
	}

	file, err := core.NewMappingBuilder(req.Workers).Build(ctx, catalogs)
	if err != nil {
		return MappingBuildResult{}, err
	}
	if err := s.MappingStore.Write(output, file); err != nil {
		return MappingBuildResult{}, err
	}
	log.Ctx(ctx).Info().
		Int("servers", len(catalogs)).
		Int("mappings", len(file.Mappings)).
		Str("output", output).
		Msg("package build mappings written")
	return MappingBuildResult{
		OutputPath: output,
		Servers:    len(catalogs),
		Mappings:   len(file.Mappings),
	}, nil
}
