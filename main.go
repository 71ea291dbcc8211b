package main

import "d3fend-graphx/cmd"

func main() {
	cmd.Execute()
}
