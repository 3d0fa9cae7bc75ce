package main

import (
	"fmt"
	"os"

	"agent_console/internal/auth"
)

// Генерирует bcrypt hash для CONSOLE_PASSWORD_HASH
func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: hashpass <password>")
		os.Exit(1)
	}

	hash, err := auth.HashPassword(os.Args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to hash password:", err)
		os.Exit(1)
	}

	fmt.Println(hash)
}
