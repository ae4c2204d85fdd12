package main

import "github.com/tanq16/coursefetch/cmd"

func main() {
	cmd.Execute()
}
