package main

import "github.com/MoonletLabs/tempo-analytics/internal/cli"

func main() {
	cli.Execute()
}
