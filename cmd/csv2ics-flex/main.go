package main

import "coursecal/internal/cli"

func main() {
	cli.Execute(cli.NewFlexibleCommand())
}
