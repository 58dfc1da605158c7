package main

import "github.com/Anurag-122004/CIRC/cmd"

func main() {
	cmd.Execute()
}
