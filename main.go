package main

import "github.com/todolist-api/apiserver/cmd"

func main() {
	cmd.Execute()
}
