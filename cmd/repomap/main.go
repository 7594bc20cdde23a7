package main

import "github.com/mvp-joe/repo-map/internal/cli"

func main() {
	cli.Execute()
}
