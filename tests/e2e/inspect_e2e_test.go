package e2e

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"change-manifest/internal/adapters"
	"change-manifest/internal/types"
	"change-manifest/tests/testutil"
)

func TestInspectCommandE2E(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping go run e2e in short mode")
	}
	root := testutil.RepoRoot(t)
	manifestPath := filepath.Join(t.TempDir(), "manifest.json")

	manifest := types.ChangeManifest{
		FromVersion:        "10",
		ToVersion:          "11",
		Generated:          time.Date(2024, 5, 17, 9, 30, 0, 0, time.UTC),
		BuildConfiguration: types.BuildTypeDetails{ID: "App_Build", Name: "App"},
		NuGetPackageChanges: []types.NuGetPackageChange{
			{PackageID: "Lib.Core", OldVersion: "1.0.0", NewVersion: "2.0.0", Type: types.PackageChangeModified},
		},
	}
	require.NoError(t, adapters.NewManifestFileAdapter(nil).Write(manifestPath, types.ManifestFormatJSON, manifest))

	cmd := exec.Command("go", "run", "./cmd/change-manifest", "inspect",
		"--manifest", manifestPath,
		"--log-level", "error",
	)
	cmd.Dir = root
	cmd.Env = append(os.Environ(), "GO111MODULE=on")
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
	assert.Contains(t, string(out), "App_Build")
	assert.Contains(t, string(out), "Lib.Core")
}

func TestInspectCommandE2EMissingManifest(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping go run e2e in short mode")
	}
	root := testutil.RepoRoot(t)
	cmd := exec.Command("go", "run", "./cmd/change-manifest", "inspect",
		"--manifest", filepath.Join(t.TempDir(), "missing.yaml"),
	)
	cmd.Dir = root
	out, err := cmd.CombinedOutput()
	require.Error(t, err)
	assert.Contains(t, string(out), "manifest file not found")
}
