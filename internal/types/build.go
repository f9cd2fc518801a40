package types

type Build struct {
	ID          string `yaml:"id" json:"id"`
	Number      string `yaml:"number" json:"number"`
	BuildTypeID string `yaml:"build_type_id" json:"buildTypeId"`
	Status      string `yaml:"status,omitempty" json:"status,omitempty"`
	State       string `yaml:"state,omitempty" json:"state,omitempty"`
	WebURL      string `yaml:"web_url,omitempty" json:"webUrl,omitempty"`
}

type ProjectRef struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

type BuildTypeDetails struct {
	ID      string     `yaml:"id" json:"id"`
	Name    string     `yaml:"name" json:"name"`
	Project ProjectRef `yaml:"project" json:"project"`
	WebURL  string     `yaml:"web_url,omitempty" json:"webUrl,omitempty"`
}

// IsZero reports whether the snapshot carries no build configuration.
func (d BuildTypeDetails) IsZero() bool {
	return d.ID == "" && d.Name == "" && d.Project.ID == "" && d.Project.Name == ""
}

type ChangeFile struct {
	File         string `yaml:"file" json:"file"`
	RelativeFile string `yaml:"relative_file,omitempty" json:"relativeFile,omitempty"`
	ChangeType   string `yaml:"change_type,omitempty" json:"changeType,omitempty"`
}

type ChangeDetail struct {
	ID       string       `yaml:"id" json:"id"`
	Version  string       `yaml:"version" json:"version"`
	Username string       `yaml:"username" json:"username"`
	Comment  string       `yaml:"comment" json:"comment"`
	Date     string       `yaml:"date,omitempty" json:"date,omitempty"`
	Files    []ChangeFile `yaml:"files,omitempty" json:"files,omitempty"`
}

// ChangeList is the ordered set of change ids attached to one build.
type ChangeList struct {
	BuildID   string
	ChangeIDs []string
}

type PackageDetails struct {
	ID      string `yaml:"id" json:"id"`
	Version string `yaml:"version" json:"version"`
}

type Issue struct {
	ID  string `yaml:"id" json:"id"`
	URL string `yaml:"url,omitempty" json:"url,omitempty"`
}
