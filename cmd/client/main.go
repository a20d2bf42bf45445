package main

import "flocksync/cmd/client/cmd"

func main() {
	cmd.Execute()
}
