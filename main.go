package main

import "github.com/watchmarket/watchmarket/cmd"

func main() {
	cmd.Execute()
}
