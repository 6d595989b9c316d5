package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/sourceplane/taskmon/internal/model"
)

func main() {
	// A local .env can supply TASKMON_HOME and friends in development.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var terr *model.Error
		if errors.As(err, &terr) {
			os.Exit(terr.ExitCode())
		}
		os.Exit(1)
	}
}
