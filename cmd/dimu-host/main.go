package main

import (
	"os"

	log "github.com/sirupsen/logrus"
)

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if err := getRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
