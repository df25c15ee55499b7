package main

import "github.com/fr4iser90/FoundryCord-sub001/cmd"

func main() {
	cmd.Execute()
}
