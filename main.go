package main

import "github.com/grancakongen/segment-export-go/cmd"

func main() {
	cmd.Execute()
}
