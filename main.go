package main

import "github.com/crossvenue/predictarb/cmd"

func main() {
	cmd.Execute()
}
