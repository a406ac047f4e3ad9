package main

import "github.com/nav-nms/nav/navctl/internal/cli"

func main() {
	cli.Execute()
}
