package main

import "github.com/wkalt/i3s/cli/cmd"

func main() {
	cmd.Execute()
}
