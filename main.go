package main

import "github.com/keymenu/keymenu/cmd"

func main() {
	cmd.Execute()
}
