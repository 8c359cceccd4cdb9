package main

import "github.com/kebairia/borgwatch/cmd"

func main() {
	cmd.Execute()
}
