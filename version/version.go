// © Broadcom. All Rights Reserved.
// The term "Broadcom" refers to Broadcom Inc. and/or its subsidiaries.
// SPDX-License-Identifier: MPL-2.0

package version

var (
	Version           = "2.1.0"
	VersionPrerelease = "dev"
	VersionMetadata   = ""
)

// FullVersion renders the version with its prerelease and metadata
// qualifiers, e.g. "2.1.0-dev+ent".
func FullVersion() string {
	v := Version
	if VersionPrerelease != "" {
		v += "-" + VersionPrerelease
	}
	if VersionMetadata != "" {
		v += "+" + VersionMetadata
	}
	return v
}
