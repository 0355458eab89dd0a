package main

import "github.com/nextlevelbuilder/teleflow/cmd"

func main() {
	cmd.Execute()
}
