// Command tidemark submits DynamoDB-sourced records to the OpenAI
// Batch API and shepherds the resulting jobs to completion.
package main

import (
	"fmt"
	"os"

	"github.com/custodia-labs/tidemark/internal/adapters/driving/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
