package main

import "rf433-go/cmd/rfctl/cmd"

func main() {
	cmd.Execute()
}
