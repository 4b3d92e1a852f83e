package main

import "github.com/fundrate/funding-arb/cmd"

func main() {
	cmd.Execute()
}
