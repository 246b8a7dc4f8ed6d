package main

import "github.com/lmor152/omnibooker-v2/cmd"

func main() {
	cmd.Execute()
}
