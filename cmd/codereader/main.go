package main

import "github.com/MeKo-Tech/codereader/cmd/codereader/cmd"

func main() {
	cmd.Execute()
}
