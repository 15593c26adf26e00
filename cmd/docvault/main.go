package main

import (
	"os"

	_ "github.com/joho/godotenv/autoload"
)

// @title DocVault API
// @version 1.0
// @BasePath /
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
