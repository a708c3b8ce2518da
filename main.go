package main

import "github.com/restosync/pos-agent/cmd"

func main() {
	cmd.Execute()
}
