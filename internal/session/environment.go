package session

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/host"

	"github.com/csnp/qbom/internal/trace"
)

// CaptureEnvironment snapshots the software environment of the running
// process: runtime version, host platform and the module dependencies.
// Platform detail degrades gracefully when the host cannot be queried.
func CaptureEnvironment() trace.Environment {
	platform := fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)
	if info, err := host.Info(); err == nil && info.Platform != "" {
		platform = fmt.Sprintf("%s %s (%s/%s)", info.Platform, info.PlatformVersion, runtime.GOOS, runtime.GOARCH)
	}

	return trace.Environment{
		Runtime:   strings.TrimPrefix(runtime.Version(), "go"),
		Platform:  platform,
		Packages:  capturePackages(),
		Timestamp: time.Now().UTC(),
	}
}

// capturePackages lists the module dependencies baked into the binary.
// Versions come from the build info, so they reflect what actually runs
// rather than what a manifest claims.
func capturePackages() []trace.Package {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}

	packages := make([]trace.Package, 0, len(info.Deps)+1)
	if info.Main.Path != "" {
		version := info.Main.Version
		if version == "" || version == "(devel)" {
			version = "devel"
		}
		packages = append(packages, trace.Package{Name: info.Main.Path, Version: version})
	}
	for _, dep := range info.Deps {
		if dep.Replace != nil {
			dep = dep.Replace
		}
		packages = append(packages, trace.Package{Name: dep.Path, Version: dep.Version})
	}
	return packages
}
