package main

import "github.com/RyanBlaney/sonido-pcg/cmd"

func main() {
	cmd.Execute()
}
