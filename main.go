package main

import "github.com/ValentinKolb/twinkle/cmd"

func main() {
	cmd.Execute()
}
