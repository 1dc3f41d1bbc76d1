package main

import "github.com/masjid-network/masjidctl/cmd/masjidctl/cmd"

func main() {
	cmd.Execute()
}
