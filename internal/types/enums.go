package types

type PackageChangeType string

const (
	PackageChangeAdded    PackageChangeType = "Added"
	PackageChangeRemoved  PackageChangeType = "Removed"
	PackageChangeModified PackageChangeType = "Modified"
)

type LogStatus string

const (
	LogStatusOk      LogStatus = "Ok"
	LogStatusWarning LogStatus = "Warning"
)

type ManifestFormat string

const (
	ManifestFormatYAML ManifestFormat = "yaml"
	ManifestFormatJSON ManifestFormat = "json"
)
