package main

import (
	"flag"
	"log"

	"github.com/futig/doctalk-backend/internal/builder"
)

func main() {
	env := flag.String("env", "dev", "environment: dev, prod or a name selecting .env.<name>")
	flag.Parse()

	app, err := builder.Build(*env)
	if err != nil {
		log.Fatal("Failed to build application:", err)
	}

	if err := app.Run(); err != nil {
		log.Fatal("Application error:", err)
	}
}
