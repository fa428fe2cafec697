package main

import (
	"errors"
	"io/fs"
	"log"

	"github.com/joho/godotenv"

	"clickrace/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("loading .env: %v", err)
	}
	if err := server.Run(); err != nil {
		log.Fatal(err.Error())
	}
}
