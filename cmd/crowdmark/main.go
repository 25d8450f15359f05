package main

import "github.com/crowdmark/crowdmark/cmd/crowdmark/commands"

func main() {
	commands.Execute()
}
