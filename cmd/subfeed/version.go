package main

import "runtime/debug"

// resolveVersion prefers a version injected via ldflags and falls back to the
// module version recorded by go install.
func resolveVersion(v string, bi *debug.BuildInfo) string {
	if v != "dev" {
		return v
	}
	if bi == nil || bi.Main.Version == "" || bi.Main.Version == "(devel)" {
		return "dev"
	}
	return bi.Main.Version
}

func buildVersion() string {
	bi, _ := debug.ReadBuildInfo()
	return resolveVersion(version, bi)
}
