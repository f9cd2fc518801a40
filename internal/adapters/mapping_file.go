package adapters

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"gopkg.in/yaml.v3"

	"change-manifest/internal/ports"
	"change-manifest/internal/types"
)

// MappingFileAdapter stores the package build mapping table as YAML, or
// as JSON when the path ends in .json.
type MappingFileAdapter struct{}

func NewMappingFileAdapter() MappingFileAdapter {
	return MappingFileAdapter{}
}

func (a MappingFileAdapter) Load(path string) (types.PackageBuildMappingFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.PackageBuildMappingFile{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("mapping file not found").
			WithCause(err)
	}
	var file types.PackageBuildMappingFile
	if isJSONPath(path) {
		err = json.Unmarshal(data, &file)
	} else {
		err = yaml.Unmarshal(data, &file)
	}
	if err != nil {
		return types.PackageBuildMappingFile{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("invalid mapping file format").
			WithCause(err)
	}
	return file, nil
}

func (a MappingFileAdapter) Write(path string, file types.PackageBuildMappingFile) error {
	if strings.TrimSpace(path) == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("output path is required")
	}
	var data []byte
	var err error
	if isJSONPath(path) {
		data, err = json.MarshalIndent(file, "", "  ")
	} else {
		data, err = yaml.Marshal(file)
	}
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to marshal mapping file").
			WithCause(err)
	}
	return writeFile(path, data, "mapping file")
}

func isJSONPath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

func writeFile(path string, data []byte, what string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create " + what + " directory").
			WithCause(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to write " + what).
			WithCause(err)
	}
	return nil
}

var _ ports.MappingStorePort = MappingFileAdapter{}
