package main

import "skeditor/internal/cli"

func main() {
	cli.Execute()
}
