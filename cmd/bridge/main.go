package main

import (
	"log"

	"github.com/Dkm0315/helpdesk-telegram-bridge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
