package main

import "github.com/aloqachat/aloqa/cmd"

func main() {
	cmd.Execute()
}
