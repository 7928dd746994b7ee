// Command jsonmapper transforms JSON documents with declarative rules and
// reconciles the results against stored entity records.
package main

import (
	"os"

	"github.com/edtacey/jsonmapper/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	os.Exit(cli.GetExitCode(err))
}
