package main

import "github.com/tapcore-app/tapcore/internal/cli"

func main() {
	cli.Execute()
}
