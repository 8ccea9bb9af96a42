// stylewatch incrementally transforms project stylesheets with an external tool.
package main

import (
	"os"

	"github.com/hupe1980/stylewatch/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
