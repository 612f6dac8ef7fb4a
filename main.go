package main

import (
	"os"

	"ticketbot/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
