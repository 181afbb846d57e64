package main

import "github.com/ValentinKolb/dTrie/cmd"

func main() {
	cmd.Execute()
}
