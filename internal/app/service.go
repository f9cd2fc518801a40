package app

import (
	"os"
	"time"

	"change-manifest/internal/adapters"
	"change-manifest/internal/cache"
	"change-manifest/internal/ports"
)

type Service struct {
	Caches         *cache.Registry
	MappingStore   ports.MappingStorePort
	ManifestWriter ports.ManifestWriterPort
	ManifestReader ports.ManifestReaderPort
	Clock          func() time.Time
}

func NewService() Service {
	manifests := adapters.NewManifestFileAdapter(os.Stdout)
	return Service{
		Caches:         cache.NewRegistry(),
		MappingStore:   adapters.NewMappingFileAdapter(),
		ManifestWriter: manifests,
		ManifestReader: manifests,
		Clock:          time.Now,
	}
}
