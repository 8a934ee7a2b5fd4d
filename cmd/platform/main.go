package main

import (
	"log"

	"github.com/icuxika/deepseek-api-open-platform-simulation/cmd/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
