package ports

import "change-manifest/internal/types"

type ManifestWriterPort interface {
	Write(path string, format types.ManifestFormat, manifest types.ChangeManifest) error
}

type ManifestReaderPort interface {
	Read(path string) (types.ChangeManifest, error)
}
