package main

import "github.com/MeKo-Tech/unmark/cmd/unmark/cmd"

func main() {
	cmd.Execute()
}
