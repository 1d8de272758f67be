package main

import (
	"os"

	"github.com/Proton-105/stockroom-bot/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
