package main

import "github.com/vietddude/mcroute/internal/cli"

func main() {
	cli.Execute()
}
