// The main package for the kotori-notify executable.
package main

import (
	"github.com/tymekw/kotori-notify/cmd"
)

func main() {
	cmd.Execute()
}
