package main

import "github.com/vetclinic/clinic-session/cmd/clinic-session/cmd"

func main() {
	cmd.Execute()
}
