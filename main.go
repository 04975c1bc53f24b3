package main

import "github.com/amorokk/bee/internal/cli"

func main() {
	cli.Execute()
}
