// Package appinfo reports build and runtime identity for the binaries
package appinfo

import (
	"os"
	"runtime/debug"
	"strings"
)

// version is set at link time:
//
//	go build -ldflags "-X coachhub/internal/utils/appinfo.version=v1.4.0"
var version = ""

// Environment returns the normalized deployment environment from GO_ENV,
// falling back to ENVIRONMENT and then "development"
func Environment() string {
	env := os.Getenv("GO_ENV")
	if env == "" {
		env = os.Getenv("ENVIRONMENT")
	}
	return NormalizeEnvironment(env)
}

// NormalizeEnvironment maps common aliases onto development, test,
// staging and production. Unknown names pass through lowercased.
func NormalizeEnvironment(env string) string {
	switch env = strings.ToLower(strings.TrimSpace(env)); env {
	case "", "dev", "development", "local":
		return "development"
	case "test", "testing":
		return "test"
	case "stage", "staging":
		return "staging"
	case "prod", "production":
		return "production"
	default:
		return env
	}
}

// Version returns the link-time version, the APP_VERSION variable, the
// module version or VCS revision from build info, in that order
func Version() string {
	if version != "" {
		return version
	}
	if v := os.Getenv("APP_VERSION"); v != "" {
		return v
	}

	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" && setting.Value != "" {
				if len(setting.Value) > 12 {
					return setting.Value[:12]
				}
				return setting.Value
			}
		}
	}
	return "0.0.0-dev"
}
