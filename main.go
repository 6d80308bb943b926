package main

import "lockcode-manager/cmd"

func main() {
	cmd.Execute()
}
