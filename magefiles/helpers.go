package main

import (
	"os"

	"github.com/magefile/mage/sh"
)

// RunCmdV returns a function that runs cmd with args followed by the arguments it is called with.
func RunCmdV(cmd string, args ...string) func(args ...string) error {
	return func(args2 ...string) error {
		return sh.RunV(cmd, append(args, args2...)...)
	}
}

// ExecuteInDirectory runs f inside dir and returns to the starting directory.
func ExecuteInDirectory(dir string, f func(args ...string) error, withArgs bool) error {
	rootCwd, err := os.Getwd()
	if err != nil {
		return err
	}
	if err := os.Chdir(dir); err != nil {
		return err
	}
	defer func() { _ = os.Chdir(rootCwd) }()

	if withArgs {
		return f(dir)
	}
	return f()
}

func ExecuteForAllModules(dirs []string, f func(args ...string) error, withArgs bool) error {
	for _, dir := range dirs {
		if err := ExecuteInDirectory(dir, f, withArgs); err != nil {
			LogRed("failed in module", "dir", dir)
			return err
		}
	}
	return nil
}
