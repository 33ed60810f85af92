package main

import "github.com/rakhadavedra/sow-analysis/cmd"

func main() {
	cmd.Execute()
}
