package main

import (
	"github.com/magefile/mage/sh"
)

var (
	// Commands.
	goBuild    = RunCmdV("go", "build", "-mod=readonly")
	goTest     = RunCmdV("go", "test")
	goGenerate = RunCmdV("go", "generate")
	goModTidy  = RunCmdV("go", "mod", "tidy")
	golangci   = RunCmdV("go", "run", golangciLint+"@"+golangciVersion, "run")

	// Directories.
	outdir = "bin"

	// Tools.
	gitDiff = sh.RunCmd("git", "diff", "--stat", "--exit-code", ".",
		"':(exclude)*.mod' ':(exclude)*.sum'")

	// Dependencies.
	golangciLint    = "github.com/golangci/golangci-lint/cmd/golangci-lint"
	golangciVersion = "v1.59.1"
	mockgen         = "github.com/golang/mock/mockgen@v1.6.0"

	moduleDirs = []string{".", "magefiles"}
)
