package main

import "github.com/timvw/evidence-lens/cmd"

func main() {
	cmd.Execute()
}
