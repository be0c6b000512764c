package main

import "informatik-booking/cmd"

func main() {
	cmd.Execute()
}
