//go:build ignore

// build.go - regliq build script
// Usage: go run build.go [-target=TARGET] [-v]
// Targets: all, server, liquidity-report, test, integration, clean

package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const (
	version       = "1.2.0"
	module        = "regliq"
	versionPkg    = module + "/pkg/contracts"
	distDirectory = "dist"
)

// executables maps a directory under cmd/ to its output name
var executables = map[string]string{
	"server":           "regliq-server",
	"liquidity-report": "liquidity-report",
}

var (
	colorReset = "\033[0m"
	colorRed   = "\033[31m"
	colorGreen = "\033[32m"
	colorBlue  = "\033[34m"
	colorCyan  = "\033[36m"
)

func main() {
	target := flag.String("target", "all", "Build target")
	verbose := flag.Bool("v", false, "Verbose output")
	flag.Parse()

	printHeader()
	start := time.Now()

	var err error
	switch *target {
	case "all":
		for _, name := range []string{"server", "liquidity-report"} {
			if err = buildExecutable(name, *verbose); err != nil {
				break
			}
		}
	case "server", "liquidity-report":
		err = buildExecutable(*target, *verbose)
	case "test":
		err = runGo(*verbose, "test", "-race", "-short", "./...")
	case "integration":
		err = runGo(*verbose, "test", "-race", "./internal/storage/postgres/...")
	case "clean":
		err = os.RemoveAll(distDirectory)
	default:
		err = fmt.Errorf("unknown target %q", *target)
	}

	if err != nil {
		printError(err.Error())
		os.Exit(1)
	}
	printSuccess(fmt.Sprintf("Target %s finished in %s", *target, time.Since(start).Round(time.Millisecond)))
}

func printHeader() {
	fmt.Println(colorCyan + "===========================================" + colorReset)
	fmt.Println(colorCyan + "        regliq - Build System              " + colorReset)
	fmt.Println(colorCyan + "===========================================" + colorReset)
	fmt.Println()
}

func printInfo(msg string) {
	fmt.Printf("%s[INFO]%s %s\n", colorBlue, colorReset, msg)
}

func printSuccess(msg string) {
	fmt.Printf("%s[SUCCESS]%s %s\n", colorGreen, colorReset, msg)
}

func printError(msg string) {
	fmt.Printf("%s[ERROR]%s %s\n", colorRed, colorReset, msg)
}

func buildExecutable(name string, verbose bool) error {
	output := executables[name]
	if runtime.GOOS == "windows" {
		output += ".exe"
	}
	outputPath := filepath.Join(distDirectory, output)

	printInfo(fmt.Sprintf("Building %s...", name))

	ldflags := strings.Join([]string{
		"-s", "-w",
		fmt.Sprintf("-X %s.BuildTime=%s", versionPkg, time.Now().UTC().Format(time.RFC3339)),
		fmt.Sprintf("-X %s.GitCommit=%s", versionPkg, gitCommit()),
	}, " ")

	if err := runGo(verbose, "build", "-ldflags", ldflags, "-o", outputPath, "./cmd/"+name); err != nil {
		return fmt.Errorf("failed to build %s: %w", name, err)
	}

	if info, err := os.Stat(outputPath); err == nil {
		printSuccess(fmt.Sprintf("Built %s %s (%.1f MB)", output, version, float64(info.Size())/1024/1024))
	}
	return nil
}

func runGo(verbose bool, args ...string) error {
	if verbose {
		fmt.Printf("Running: go %s\n", strings.Join(args, " "))
	}
	cmd := exec.Command("go", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func gitCommit() string {
	out, err := exec.Command("git", "rev-parse", "--short", "HEAD").Output()
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(out))
}
