package main

import (
	"flag"
	"log"

	"github.com/futig/doctalk-backend/internal/builder"
)

func main() {
	env := flag.String("env", "dev", "environment: dev, prod or a name selecting .env.<name>")
	flag.Parse()

	app, err := builder.BuildTelegramBot(*env)
	if err != nil {
		log.Fatal("Failed to build telegram bot:", err)
	}

	if err := app.Run(); err != nil {
		log.Fatal("Telegram bot error:", err)
	}
}
