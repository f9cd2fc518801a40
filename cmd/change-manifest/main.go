package main

import "change-manifest/internal/cli"

func main() {
	cli.Execute()
}
