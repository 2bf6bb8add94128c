// Command tfrag keeps a local vector index of Terraform documentation in
// sync and answers questions from it.
package main

import (
	"os"

	"github.com/Aman-CERP/tfrag/cmd/tfrag/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
