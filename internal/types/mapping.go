package types

// PackageBuildMapping records which build configuration publishes a
// NuGet package, and on which server.
type PackageBuildMapping struct {
	PackageID              string `yaml:"package_id" json:"packageId"`
	BuildConfigurationID   string `yaml:"build_configuration_id" json:"buildConfigurationId"`
	BuildConfigurationName string `yaml:"build_configuration_name,omitempty" json:"buildConfigurationName,omitempty"`
	Project                string `yaml:"project,omitempty" json:"project,omitempty"`
	ServerURL              string `yaml:"server_url,omitempty" json:"serverUrl,omitempty"`
}

type PackageBuildMappingFile struct {
	Mappings []PackageBuildMapping `yaml:"mappings" json:"mappings"`
}
