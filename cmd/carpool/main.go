package main

import "github.com/ecoride/carpool/cmd/carpool/command"

func main() {
	command.Execute()
}
