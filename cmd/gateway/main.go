package main

import (
	"github.com/rs/zerolog/log"

	"github.com/recall-hq/recall/pkg/gateway"
)

func main() {
	gw, err := gateway.NewGateway()
	if err != nil {
		log.Fatal().Err(err).Msg("error creating gateway service")
	}

	gw.Start()
	log.Info().Msg("gateway stopped")
}
