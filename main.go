package main

import "github.com/drgolem/rtengine/cmd"

func main() {
	cmd.Execute()
}
