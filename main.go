package main

import (
	"os"

	"github.com/abhisek/grasss/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
