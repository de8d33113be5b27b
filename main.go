package main

import "github.com/maxvaer/wafpierce/cmd"

func main() {
	cmd.Execute()
}
