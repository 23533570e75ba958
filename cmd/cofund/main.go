// Command cofund is the command-line interface to the crowdfunding ledger.
package main

import (
	"os"

	"github.com/mesh-intelligence/cofund/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
