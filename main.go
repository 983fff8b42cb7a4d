package main

import "github.com/longkey1/nostack/cmd"

func main() {
	cmd.Execute()
}
