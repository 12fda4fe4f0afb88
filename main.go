package main

import (
	"log"

	"github.com/jobradar/jobradar/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
