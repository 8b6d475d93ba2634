package main

import "bopus/cmd"

func main() {
	cmd.Execute()
}
