package main

import "github.com/rustyeddy/eodsim/internal/cli"

func main() {
	cli.Execute()
}
