package main

import "github.com/papapumpkin/nullfix/cmd"

func main() {
	cmd.Execute()
}
