package main

import (
	"github.com/churnscope/churnctl/pkg/cli"
)

func main() {
	cli.Execute()
}
