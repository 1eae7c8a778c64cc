package main

import "distress-detector/internal/cli"

func main() {
	cli.Execute()
}
