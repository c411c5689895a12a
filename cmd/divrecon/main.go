package main

import (
	"dividend-recon/internal/cli"
)

func main() {
	cli.Execute()
}
