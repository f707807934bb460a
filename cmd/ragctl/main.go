package main

import (
	"os"

	"pythagorean/internal/cli"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	os.Exit(cli.Run())
}
