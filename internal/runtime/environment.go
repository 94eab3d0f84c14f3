package runtime

import (
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/soulwire/soulwire/internal/infra"
)

// Environment is the read-only machine contract detected once per Runtime:
// os_kind/os_arch/os_version plus the login shell the runtime would invoke
// for shell-tool execution.
type Environment struct {
	OSKind    string
	OSArch    string
	OSVersion string

	// ShellName is one of "bash", "sh", or "Windows PowerShell" — the
	// three shells a shell-exec tool needs to format commands for.
	ShellName string
	ShellPath string
}

var (
	detectOnce sync.Once
	detected   Environment
)

// DetectEnvironment resolves the Environment contract once per process and
// caches it; every Runtime shares the same snapshot.
func DetectEnvironment() Environment {
	detectOnce.Do(func() {
		detected = detectEnvironment()
	})
	return detected
}

func detectEnvironment() Environment {
	summary := infra.ResolveOSSummary()
	name, path := detectShell()
	return Environment{
		OSKind:    summary.Platform,
		OSArch:    summary.Arch,
		OSVersion: summary.Release,
		ShellName: name,
		ShellPath: path,
	}
}

func detectShell() (name, path string) {
	if runtime.GOOS == "windows" {
		if p := os.Getenv("COMSPEC"); p != "" {
			return "Windows PowerShell", p
		}
		return "Windows PowerShell", "powershell.exe"
	}

	shellPath := os.Getenv("SHELL")
	if shellPath == "" {
		shellPath = "/bin/sh"
	}

	base := shellPath
	if idx := strings.LastIndex(shellPath, "/"); idx >= 0 {
		base = shellPath[idx+1:]
	}
	if strings.Contains(base, "bash") {
		return "bash", shellPath
	}
	return "sh", shellPath
}
