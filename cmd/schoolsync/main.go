// Package main provides the schoolsync command: it downloads the public schools
// directory and flattens it into CSV, XLSX and SQLite tables.
package main

import (
	"errors"
	"fmt"
	"os"

	"schoolsync/internal/schools"
)

// Exit codes.
const (
	exitOK        = 0
	exitFailure   = 1
	exitNoRecords = 3
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	root := newRootCmd()
	root.SetArgs(args)

	err := root.Execute()
	if err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
	}

	return exitCode(err)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, schools.ErrEmptyRecordSet):
		return exitNoRecords
	default:
		return exitFailure
	}
}
