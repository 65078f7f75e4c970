package main

import (
	"log"
	"os"
)

func main() {
	logger := log.New(os.Stdout, "home-jukebox ", log.LstdFlags|log.Lmsgprefix)

	if err := newRootCommand(logger).Execute(); err != nil {
		logger.Fatalf("%v", err)
	}
}
