package main

import "github.com/simonyos/mango/cmd"

func main() {
	cmd.Execute()
}
