// Package version reports what binary is running.
package version

import (
	"runtime/debug"

	"github.com/sirupsen/logrus"
)

// Name is the product name shown in logs and the health endpoint.
const Name = "genio"

// These are set via ldflags at build time
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// Info contains version and build information
type Info struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	Revision  string `json:"revision,omitempty"`
	Dirty     bool   `json:"dirty"`
}

// Get reads the ldflags values and the module build info.
func Get() Info {
	info := Info{
		Name:      Name,
		Version:   Version,
		BuildTime: BuildTime,
	}

	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	info.GoVersion = buildInfo.GoVersion
	for _, setting := range buildInfo.Settings {
		switch setting.Key {
		case "vcs.revision":
			info.Revision = setting.Value
			if len(info.Revision) > 8 {
				info.Revision = info.Revision[:8]
			}
		case "vcs.modified":
			info.Dirty = setting.Value == "true"
		}
	}
	return info
}

// String is the one-line form printed by -version.
func (i Info) String() string {
	s := i.Name + " " + i.Version
	if i.Revision != "" {
		s += " (" + i.Revision
		if i.Dirty {
			s += "+dirty"
		}
		s += ")"
	}
	if i.GoVersion != "" {
		s += " " + i.GoVersion
	}
	return s
}

// Fields returns the info as log fields for the startup line.
func (i Info) Fields() logrus.Fields {
	fields := logrus.Fields{
		"version": i.Version,
		"go":      i.GoVersion,
	}
	if i.BuildTime != "unknown" {
		fields["built"] = i.BuildTime
	}
	if i.Revision != "" {
		fields["revision"] = i.Revision
	}
	return fields
}

// Warning describes a build that should not run in production, "" for a
// release build.
func (i Info) Warning() string {
	switch {
	case i.Dirty:
		return "built from a modified source tree"
	case i.Revision == "" && i.Version == "dev":
		return "development build without version control information"
	}
	return ""
}
