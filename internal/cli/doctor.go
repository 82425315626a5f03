package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// DoctorCommand returns the CLI command definition for the 'doctor' subcommand.
// This command runs diagnostic checks to verify tracearc is properly configured.
func DoctorCommand(version string) *cli.Command {
	return &cli.Command{
		Name:  "doctor",
		Usage: "Diagnose common setup and configuration issues",
		Description: `Run comprehensive checks to verify tracearc is properly configured.

This command checks:
  - Binary location and permissions
  - Config file (.tracearc.json) syntax
  - Registry file validity
  - Trace log directory contents

Exit codes:
  0 - All critical checks passed
  1 - One or more issues found`,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runDoctor(version)
		},
	}
}

type checkResult struct {
	Name       string
	Status     string // "pass", "warn", "fail"
	Message    string
	Suggestion string
	IsCritical bool
}

type fsUtils interface {
	Executable() (string, error)
	Stat(name string) (os.FileInfo, error)
	ReadFile(name string) ([]byte, error)
	ReadDir(name string) ([]os.DirEntry, error)
	UserHomeDir() (string, error)
	Getwd() (string, error)
}

type realFsUtils struct{}

func (r *realFsUtils) Executable() (string, error)                { return os.Executable() }
func (r *realFsUtils) Stat(name string) (os.FileInfo, error)      { return os.Stat(name) }
func (r *realFsUtils) ReadFile(name string) ([]byte, error)       { return os.ReadFile(name) }
func (r *realFsUtils) ReadDir(name string) ([]os.DirEntry, error) { return os.ReadDir(name) }
func (r *realFsUtils) UserHomeDir() (string, error)               { return os.UserHomeDir() }
func (r *realFsUtils) Getwd() (string, error)                     { return os.Getwd() }

func runDoctor(version string) error {
	return runDoctorWithUtils(version, &realFsUtils{})
}

func runDoctorWithUtils(version string, utils fsUtils) error {
	fmt.Printf("🔍 tracearc doctor v%s\n\n", version)

	checks := []func(utils fsUtils) checkResult{
		checkBinaryLocation,
		checkBinaryExecutable,
		checkConfigFile,
		checkRegistryFile,
		checkLogDir,
	}

	results := make([]checkResult, 0, len(checks))
	for _, check := range checks {
		result := check(utils)
		results = append(results, result)
		printCheckResult(result)
	}

	fmt.Println()
	summary := summarizeResults(results)
	printSummary(summary)

	if summary.FailCount > 0 {
		return fmt.Errorf("found %d issues that need attention", summary.FailCount)
	}

	return nil
}

func printCheckResult(result checkResult) {
	var icon string
	switch result.Status {
	case "pass":
		icon = "✓"
	case "warn":
		icon = "⚠"
	case "fail":
		icon = "✗"
	}

	fmt.Printf("%s %s\n", icon, result.Message)

	if result.Suggestion != "" {
		fmt.Printf("  %s\n", result.Suggestion)
	}
}

type resultSummary struct {
	PassCount int
	WarnCount int
	FailCount int
}

func summarizeResults(results []checkResult) resultSummary {
	var summary resultSummary
	for _, r := range results {
		switch r.Status {
		case "pass":
			summary.PassCount++
		case "warn":
			summary.WarnCount++
		case "fail":
			summary.FailCount++
		}
	}
	return summary
}

func printSummary(summary resultSummary) {
	if summary.FailCount > 0 {
		fmt.Printf("❌ Found %d issue(s) that need attention\n", summary.FailCount)
		if summary.WarnCount > 0 {
			fmt.Printf("⚠️  %d warning(s)\n", summary.WarnCount)
		}
	} else if summary.WarnCount > 0 {
		fmt.Printf("✅ All critical checks passed!\n")
		fmt.Printf("⚠️  %d optional warning(s)\n", summary.WarnCount)
		fmt.Printf("💡 Run 'tracearc build <log-dir>' to build an archive\n")
	} else {
		fmt.Printf("✅ All checks passed!\n")
		fmt.Printf("💡 Run 'tracearc build <log-dir>' to build an archive\n")
	}
}

// Check 1: Binary location
func checkBinaryLocation(utils fsUtils) checkResult {
	executable, err := utils.Executable()
	if err != nil {
		return checkResult{
			Name:       "binary_location",
			Status:     "fail",
			Message:    "Could not determine binary location",
			Suggestion: fmt.Sprintf("Error: %v", err),
			IsCritical: true,
		}
	}

	absPath, err := filepath.Abs(executable)
	if err != nil {
		absPath = executable
	}

	return checkResult{
		Name:       "binary_location",
		Status:     "pass",
		Message:    fmt.Sprintf("Binary location: %s", absPath),
		IsCritical: false,
	}
}

// Check 2: Binary executable
func checkBinaryExecutable(utils fsUtils) checkResult {
	executable, err := utils.Executable()
	if err != nil {
		return checkResult{
			Name:       "binary_executable",
			Status:     "fail",
			Message:    "Could not check if binary is executable",
			IsCritical: true,
		}
	}

	info, err := utils.Stat(executable)
	if err != nil {
		return checkResult{
			Name:       "binary_executable",
			Status:     "fail",
			Message:    "Could not stat binary",
			Suggestion: fmt.Sprintf("Error: %v", err),
			IsCritical: true,
		}
	}

	// Ensure info is not nil before calling Mode()
	if info == nil {
		return checkResult{
			Name:       "binary_executable",
			Status:     "fail",
			Message:    "Binary info is nil after stat",
			IsCritical: true,
		}
	}

	mode := info.Mode()
	if mode&0111 == 0 {
		return checkResult{
			Name:       "binary_executable",
			Status:     "fail",
			Message:    "Binary is not executable",
			Suggestion: fmt.Sprintf("Run: chmod +x %s", executable),
			IsCritical: true,
		}
	}

	return checkResult{
		Name:       "binary_executable",
		Status:     "pass",
		Message:    "Binary is executable",
		IsCritical: false,
	}
}

// Check 3: Config file syntax
func checkConfigFile(utils fsUtils) checkResult {
	configPath := findConfigPath(utils)
	if configPath == "" {
		return checkResult{
			Name:    "config_file",
			Status:  "warn",
			Message: "Optional: no config file found",
			Suggestion: `tracearc works without one. To set defaults, create .tracearc.json
  in your project or ~/.config/tracearc/config.json`,
			IsCritical: false,
		}
	}

	data, err := utils.ReadFile(configPath)
	if err != nil {
		return checkResult{
			Name:       "config_file",
			Status:     "fail",
			Message:    "Could not read config file",
			Suggestion: fmt.Sprintf("Error reading %s: %v", configPath, err),
			IsCritical: true,
		}
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return checkResult{
			Name:       "config_file",
			Status:     "fail",
			Message:    "Config file is not valid JSON",
			Suggestion: fmt.Sprintf("Error parsing %s: %v", configPath, err),
			IsCritical: true,
		}
	}

	return checkResult{
		Name:       "config_file",
		Status:     "pass",
		Message:    fmt.Sprintf("Config found: %s", configPath),
		IsCritical: false,
	}
}

// Check 4: Registry file
func checkRegistryFile(utils fsUtils) checkResult {
	configPath := findConfigPath(utils)
	registryPath := ""
	if configPath != "" {
		if data, err := utils.ReadFile(configPath); err == nil {
			var config Config
			if json.Unmarshal(data, &config) == nil {
				registryPath = config.RegistryFile
			}
		}
	}

	if registryPath == "" {
		return checkResult{
			Name:       "registry_file",
			Status:     "pass",
			Message:    "Registry: built-in Spark registry",
			IsCritical: false,
		}
	}

	data, err := utils.ReadFile(registryPath)
	if err != nil {
		return checkResult{
			Name:       "registry_file",
			Status:     "fail",
			Message:    "Could not read registry file",
			Suggestion: fmt.Sprintf("Error reading %s: %v", registryPath, err),
			IsCritical: true,
		}
	}

	var decl RegistryFile
	if err := yaml.Unmarshal(data, &decl); err != nil {
		return checkResult{
			Name:       "registry_file",
			Status:     "fail",
			Message:    "Registry file is not valid YAML",
			Suggestion: fmt.Sprintf("Error parsing %s: %v", registryPath, err),
			IsCritical: true,
		}
	}

	if _, err := BuildRegistry(&decl); err != nil {
		return checkResult{
			Name:       "registry_file",
			Status:     "fail",
			Message:    "Registry file failed validation",
			Suggestion: fmt.Sprintf("Error: %v", err),
			IsCritical: true,
		}
	}

	return checkResult{
		Name:       "registry_file",
		Status:     "pass",
		Message:    fmt.Sprintf("Registry valid: %s (%d types)", registryPath, len(decl.Types)),
		IsCritical: false,
	}
}

// Check 5: Trace log directory
func checkLogDir(utils fsUtils) checkResult {
	configPath := findConfigPath(utils)
	logDir := ""
	if configPath != "" {
		if data, err := utils.ReadFile(configPath); err == nil {
			var config Config
			if json.Unmarshal(data, &config) == nil {
				logDir = config.LogDir
			}
		}
	}

	if logDir == "" {
		return checkResult{
			Name:       "log_dir",
			Status:     "warn",
			Message:    "Optional: no log_dir configured",
			Suggestion: "Pass a directory to 'tracearc build' or set log_dir in config",
			IsCritical: false,
		}
	}

	entries, err := utils.ReadDir(logDir)
	if err != nil {
		return checkResult{
			Name:       "log_dir",
			Status:     "fail",
			Message:    fmt.Sprintf("Log dir not readable: %s", logDir),
			Suggestion: fmt.Sprintf("Error: %v", err),
			IsCritical: true,
		}
	}

	count := 0
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".jsonl") {
			count++
		}
	}
	if count == 0 {
		return checkResult{
			Name:       "log_dir",
			Status:     "warn",
			Message:    fmt.Sprintf("Log dir has no .jsonl files: %s", logDir),
			Suggestion: "Builds will fail until trace files appear here",
			IsCritical: false,
		}
	}

	return checkResult{
		Name:       "log_dir",
		Status:     "pass",
		Message:    fmt.Sprintf("Log dir: %s (%d .jsonl files)", logDir, count),
		IsCritical: false,
	}
}

// findConfigPath returns the first existing config file path, preferring
// the project config over the global one. Empty when neither exists.
func findConfigPath(utils fsUtils) string {
	cwd, _ := utils.Getwd()
	if cwd != "" {
		projectPath := filepath.Join(cwd, ".tracearc.json")
		if _, err := utils.Stat(projectPath); err == nil {
			return projectPath
		}
	}

	homeDir, err := utils.UserHomeDir()
	if err != nil {
		return ""
	}
	globalPath := filepath.Join(homeDir, ".config", "tracearc", "config.json")
	if _, err := utils.Stat(globalPath); err == nil {
		return globalPath
	}

	return ""
}
