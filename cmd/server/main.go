// Application server is the main server for the application
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"

	"github.com/starquake/quizstore/cmd/server/app"
)

func main() {
	// A .env file is optional; variables already set in the environment win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "error loading .env: %v\n", err)
		os.Exit(1)
	}

	if err := app.Run(context.Background(), os.Getenv, os.Stdout, nil); err != nil {
		os.Exit(1)
	}
}
