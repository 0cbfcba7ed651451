//go:build mage
// +build mage

package main

import (
	"fmt"
	"os"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binary      = "bin/jobhunter-server"
	coverFile   = "coverage.out"
	serverPkg   = "./cmd/server"
	allPackages = "./..."
)

// Default target when running mage without arguments.
var Default = Build

// Build compiles the server into bin/.
func Build() error {
	fmt.Println("Building", binary)
	return sh.RunV("go", "build", "-trimpath", "-o", binary, serverPkg)
}

// Test runs every package's tests with the race detector.
func Test() error {
	return sh.RunV("go", "test", "-race", "-count=1", allPackages)
}

// Cover writes coverage.out and prints the per-function summary.
func Cover() error {
	if err := sh.RunV("go", "test", "-covermode=atomic", "-coverprofile="+coverFile, allPackages); err != nil {
		return err
	}
	return sh.RunV("go", "tool", "cover", "-func="+coverFile)
}

// Lint runs go vet and golangci-lint.
func Lint() error {
	if err := sh.RunV("go", "vet", allPackages); err != nil {
		return err
	}
	return sh.RunV("golangci-lint", "run", allPackages)
}

// Dev runs the server against the canned mock provider and in-memory stores.
func Dev() error {
	mg.Deps(Build)
	env := map[string]string{
		"JOBHUNTER_AI_PROVIDER": "mock",
		"JOBHUNTER_ENVIRONMENT": "development",
	}
	return sh.RunWithV(env, binary)
}

// CI runs lint and the race tests, then the coverage report.
func CI() {
	mg.SerialDeps(Lint, Test, Cover)
}

// Clean removes build and coverage output.
func Clean() error {
	if err := os.RemoveAll("bin"); err != nil {
		return err
	}
	if err := os.Remove(coverFile); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
