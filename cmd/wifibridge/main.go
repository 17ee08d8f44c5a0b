package main

import "wifibridge/internal/cli"

func main() {
	cli.Execute()
}
