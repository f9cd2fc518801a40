package types

import "time"

type NuGetPackageChange struct {
	PackageID  string            `yaml:"package_id" json:"packageId"`
	OldVersion string            `yaml:"old_version,omitempty" json:"oldVersion,omitempty"`
	NewVersion string            `yaml:"new_version,omitempty" json:"newVersion,omitempty"`
	Type       PackageChangeType `yaml:"type" json:"type"`
}

type ExternalIssueDetails struct {
	ID       string `yaml:"id" json:"id"`
	Title    string `yaml:"title,omitempty" json:"title,omitempty"`
	Status   string `yaml:"status,omitempty" json:"status,omitempty"`
	Type     string `yaml:"type,omitempty" json:"type,omitempty"`
	URL      string `yaml:"url,omitempty" json:"url,omitempty"`
	Resolver string `yaml:"resolver,omitempty" json:"resolver,omitempty"`
}

type GenerationLogEntry struct {
	Timestamp time.Time `yaml:"timestamp" json:"timestamp"`
	Status    LogStatus `yaml:"status" json:"status"`
	Message   string    `yaml:"message" json:"message"`
}

// ChangeManifest is owned by the resolution that created it and is not
// safe for concurrent mutation.
type ChangeManifest struct {
	FromVersion                 string                 `yaml:"from_version" json:"fromVersion"`
	ToVersion                   string                 `yaml:"to_version" json:"toVersion"`
	Generated                   time.Time              `yaml:"generated" json:"generated"`
	BuildConfiguration          BuildTypeDetails       `yaml:"build_configuration" json:"buildConfiguration"`
	ReferenceBuildConfiguration BuildTypeDetails       `yaml:"reference_build_configuration" json:"referenceBuildConfiguration"`
	ChangeDetails               []ChangeDetail         `yaml:"change_details" json:"changeDetails"`
	IssueDetails                []ExternalIssueDetails `yaml:"issue_details" json:"issueDetails"`
	NuGetPackageChanges         []NuGetPackageChange   `yaml:"nuget_package_changes" json:"nugetPackageChanges"`
	GenerationLog               []GenerationLogEntry   `yaml:"generation_log" json:"generationLog"`
}

func (m *ChangeManifest) AddLogEntry(at time.Time, status LogStatus, message string) {
	m.GenerationLog = append(m.GenerationLog, GenerationLogEntry{
		Timestamp: at,
		Status:    status,
		Message:   message,
	})
}

// Warnings returns the log entries recorded with Warning status.
func (m ChangeManifest) Warnings() []GenerationLogEntry {
	var out []GenerationLogEntry
	for _, entry := range m.GenerationLog {
		if entry.Status == LogStatusWarning {
			out = append(out, entry)
		}
	}
	return out
}
