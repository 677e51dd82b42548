package main

import "github.com/jake-scott/smartrent-lock/cmd"

func main() {
	cmd.Execute()
}
