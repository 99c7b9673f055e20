package main

import "phg/internal/cli"

func main() {
	cli.Execute()
}
