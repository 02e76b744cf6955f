package main

import "github.com/aicha-kelia/drama-aggregator/cmd/tafarraj/cmd"

func main() {
	cmd.Execute()
}
