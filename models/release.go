package models

import (
	"fmt"
	"strings"
)

// ReleaseID identifies an artifact bundle by its group/artifact/version
// coordinates. Version may be a concrete identifier or a moving (snapshot)
// one whose resolution can change over time.
type ReleaseID struct {
	GroupID    string `json:"group_id" validate:"required"`
	ArtifactID string `json:"artifact_id" validate:"required"`
	Version    string `json:"version" validate:"required"`
}

func (r ReleaseID) String() string {
	return fmt.Sprintf("%s:%s:%s", r.GroupID, r.ArtifactID, r.Version)
}

// IsEmpty reports whether the coordinates carry no information at all.
func (r ReleaseID) IsEmpty() bool {
	return r.GroupID == "" && r.ArtifactID == "" && r.Version == ""
}

// IsSnapshot reports whether the version is a moving identifier.
func (r ReleaseID) IsSnapshot() bool {
	return strings.HasSuffix(strings.ToUpper(r.Version), "-SNAPSHOT")
}
