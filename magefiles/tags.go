package main

import (
	"strings"

	"github.com/magefile/mage/sh"
)

var (
	version        = "0.0.0"
	commit, _      = sh.Output("git", "log", "-1", "--format=%h")
	executableName = "keeper"
	mainPackage    = "./cmd/keeper"
)

// generateOutDirectory returns the output directory for a given command.
func generateOutDirectory(cmd string) string {
	return outdir + "/" + cmd
}

// generateLinkerFlags returns the linker flags to be used when building the binary.
func generateLinkerFlags(production bool) string {
	v := version
	if commit != "" {
		v += "-" + commit
	}
	baseFlags := []string{"-X main.version=" + v}
	if production {
		baseFlags = append(baseFlags, "-w", "-s")
	}
	return "-ldflags=" + strings.Join(baseFlags, " ")
}
