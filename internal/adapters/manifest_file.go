package adapters

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"gopkg.in/yaml.v3"

	"change-manifest/internal/ports"
	"change-manifest/internal/types"
)

// ManifestFileAdapter writes change manifests as YAML or JSON and reads
// them back for inspection. An empty or "-" path writes to Stdout.
type ManifestFileAdapter struct {
	Stdout io.Writer
}

func NewManifestFileAdapter(stdout io.Writer) ManifestFileAdapter {
	if stdout == nil {
		stdout = os.Stdout
	}
	return ManifestFileAdapter{Stdout: stdout}
}

func ParseManifestFormat(value string) (types.ManifestFormat, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(types.ManifestFormatYAML), "yml":
		return types.ManifestFormatYAML, nil
	case string(types.ManifestFormatJSON):
		return types.ManifestFormatJSON, nil
	default:
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unsupported manifest format: %s", value))
	}
}

func (a ManifestFileAdapter) Write(path string, format types.ManifestFormat, manifest types.ChangeManifest) error {
	data, err := encodeManifest(format, manifest)
	if err != nil {
		return err
	}
	if trimmed := strings.TrimSpace(path); trimmed == "" || trimmed == "-" {
		stdout := a.Stdout
		if stdout == nil {
			stdout = os.Stdout
		}
		if _, err := stdout.Write(data); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to write manifest").
				WithCause(err)
		}
		return nil
	}
	return writeFile(path, data, "manifest")
}

func (a ManifestFileAdapter) Read(path string) (types.ChangeManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.ChangeManifest{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("manifest file not found").
			WithCause(err)
	}
	var manifest types.ChangeManifest
	if isJSONPath(path) || strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
		err = json.Unmarshal(data, &manifest)
	} else {
		err = yaml.Unmarshal(data, &manifest)
	}
	if err != nil {
		return types.ChangeManifest{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("invalid manifest format").
			WithCause(err)
	}
	return manifest, nil
}

func encodeManifest(format types.ManifestFormat, manifest types.ChangeManifest) ([]byte, error) {
	var data []byte
	var err error
	switch format {
	case types.ManifestFormatJSON:
		data, err = json.MarshalIndent(manifest, "", "  ")
		data = append(data, '\n')
	case types.ManifestFormatYAML, "":
		data, err = yaml.Marshal(manifest)
	default:
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unsupported manifest format: %s", format))
	}
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to marshal manifest").
			WithCause(err)
	}
	return data, nil
}

var _ ports.ManifestWriterPort = ManifestFileAdapter{}
var _ ports.ManifestReaderPort = ManifestFileAdapter{}
