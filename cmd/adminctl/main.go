package main

import "github.com/tansive/adminconsole/internal/cli"

func main() {
	cli.Execute()
}
