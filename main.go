package main

import "github.com/chukul/cloudaudit/cmd"

func main() {
	cmd.Execute()
}
