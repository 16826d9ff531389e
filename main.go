package main

import (
	"os"

	"raffler/cmd"

	log "github.com/sirupsen/logrus"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.WithError(err).Error("raffler failed")
		os.Exit(1)
	}
}
