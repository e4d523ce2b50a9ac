package main

import "github.com/hangyeol-kang/d3RW/cmd/d3rwc/cmd"

func main() {
	cmd.Execute()
}
