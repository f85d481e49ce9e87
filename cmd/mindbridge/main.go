package main

import (
	"fmt"
	"os"

	"mindbridge/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "mindbridge:", err)
		os.Exit(1)
	}
}
