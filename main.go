package main

import "github.com/retropreserve/uff/cmd"

func main() {
	cmd.Execute()
}
