package main

import "docsmith/cmd"

func main() {
	cmd.Execute()
}
