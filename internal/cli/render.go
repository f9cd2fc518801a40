package cli

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"change-manifest/internal/types"
)

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	style := table.StyleLight
	style.Options.DrawBorder = false
	t.SetStyle(style)
	return t
}

func renderSummary(out io.Writer, manifest types.ChangeManifest) {
	var added, removed, modified int
	for _, change := range manifest.NuGetPackageChanges {
		switch change.Type {
		case types.PackageChangeAdded:
			added++
		case types.PackageChangeRemoved:
			removed++
		case types.PackageChangeModified:
			modified++
		}
	}
	t := newTable(out)
	t.AppendHeader(table.Row{"Build Configuration", "From", "To", "Changes", "Issues", "Packages (+/-/~)", "Warnings"})
	t.AppendRow(table.Row{
		manifest.BuildConfiguration.ID,
		manifest.FromVersion,
		manifest.ToVersion,
		len(manifest.ChangeDetails),
		len(manifest.IssueDetails),
		fmt.Sprintf("%d/%d/%d", added, removed, modified),
		len(manifest.Warnings()),
	})
	t.Render()
}

func renderPackageChanges(out io.Writer, manifest types.ChangeManifest) {
	if len(manifest.NuGetPackageChanges) == 0 {
		return
	}
	t := newTable(out)
	t.AppendHeader(table.Row{"Package", "Change", "Old", "New"})
	for _, change := range manifest.NuGetPackageChanges {
		t.AppendRow(table.Row{change.PackageID, change.Type, change.OldVersion, change.NewVersion})
	}
	t.Render()
}

func renderGenerationLog(out io.Writer, manifest types.ChangeManifest) {
	if len(manifest.GenerationLog) == 0 {
		return
	}
	t := newTable(out)
	t.AppendHeader(table.Row{"Time", "Status", "Message"})
	for _, entry := range manifest.GenerationLog {
		t.AppendRow(table.Row{entry.Timestamp.Format("2006-01-02 15:04:05Z07:00"), entry.Status, entry.Message})
	}
	t.Render()
}
