package main

import (
	"os"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

type Keeper mg.Namespace

var production = false

// Build builds the keeper binary into bin/.
func (Keeper) Build() error {
	LogGreen("Building keeper...", "version", version, "commit", commit)
	return goBuild(generateLinkerFlags(production), "-o", generateOutDirectory(executableName), mainPackage)
}

// Release builds a stripped binary.
func (k Keeper) Release() error {
	production = true
	return k.Build()
}

// Test runs the unit tests with the race detector.
func (Keeper) Test() error {
	LogGreen("Running tests...")
	return goTest("-race", "-count=1", "./...")
}

// Lint runs golangci-lint over the module.
func (Keeper) Lint() error {
	LogGreen("Running linter...")
	return golangci("./...")
}

// Mocks regenerates the gomock doubles and fails if they drifted.
func (Keeper) Mocks() error {
	LogGreen("Generating mocks...")
	if os.Getenv("CI") == "" {
		LogYellow("not in CI, skipping drift check")
	}
	if err := sh.Run("go", "install", mockgen); err != nil {
		return err
	}
	if err := goGenerate("./..."); err != nil {
		return err
	}
	if os.Getenv("CI") != "" {
		return gitDiff()
	}
	return nil
}

// Tidy runs go mod tidy in every module of the repository.
func (Keeper) Tidy() error {
	return ExecuteForAllModules(moduleDirs, func(...string) error { return goModTidy() }, false)
}
