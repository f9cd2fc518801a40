package adapters

import (
	"change-manifest/internal/cache"
	"change-manifest/internal/ports"
)

// TeamCityClientFactory builds clients that share credentials, HTTP
// settings and the per-server response caches of one process.
type TeamCityClientFactory struct {
	Auth     TeamCityAuth
	Settings HTTPSettings
	Caches   *cache.Registry
}

func NewTeamCityClientFactory(auth TeamCityAuth, settings HTTPSettings, caches *cache.Registry) TeamCityClientFactory {
	if caches == nil {
		caches = cache.NewRegistry()
	}
	return TeamCityClientFactory{Auth: auth, Settings: settings, Caches: caches}
}

func (f TeamCityClientFactory) Client(serverURL string) (*TeamCityClient, error) {
	caches := f.Caches
	if caches == nil {
		caches = cache.NewRegistry()
	}
	return NewTeamCityClient(serverURL, f.Auth, f.Settings, caches.ForServer(serverURL))
}

// Port adapts the factory to the resolver's ClientFactory signature.
func (f TeamCityClientFactory) Port() ports.ClientFactory {
	return func(serverURL string) (ports.BuildSystemPort, error) {
		client, err := f.Client(serverURL)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}
