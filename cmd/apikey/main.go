package main

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/onegreenvn/storybook-services-backend/internal/services/api_key"
)

// Prints a new API key and the bcrypt hash to append to API_KEY_HASHES
func main() {
	key, hash, err := api_key.GenerateAPIKey()
	if err != nil {
		logrus.Fatalf("Failed to generate API key: %v", err)
	}

	fmt.Printf("API key (give to the client): %s\n", key)
	fmt.Printf("Hash (add to API_KEY_HASHES): %s\n", hash)
}
