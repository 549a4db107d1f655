package main

import (
	"github.com/Zeeshan138063/digikey-client/cmd/digikey-scraper/cmd"
)

func main() {
	cmd.Execute()
}
