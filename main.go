package main

import (
	"github.com/joho/godotenv"

	"github.com/banshee-data/egopose/cmd"
)

func main() {
	// Env-file overrides are optional; a missing .env is not an error.
	_ = godotenv.Load()
	cmd.Execute()
}
