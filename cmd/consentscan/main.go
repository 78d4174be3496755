// Command consentscan scans websites for cookie consent compliance and
// serves the scanner's HTTP API.
package main

import (
	"context"
	"os"

	"github.com/raysh454/consentscan/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
