package main

import "vidparse/cmd"

func main() {
	cmd.Execute()
}
