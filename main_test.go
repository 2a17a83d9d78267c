package main

import (
	"testing"

	"github.com/kabili207/mesh-inbox/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func connectorNames(cfg *config.Configuration) []string {
	var names []string
	for _, c := range buildConnectors(cfg, zerolog.Nop()) {
		names = append(names, c.Name())
	}
	return names
}

func TestBuildConnectors(t *testing.T) {
	assert.Equal(t, []string{"UDP", "MQTT"}, connectorNames(&config.Configuration{
		Broker:    "tcp://localhost:1883",
		RootTopic: "mesht/relay",
		UDP:       config.UDPConfig{Enabled: true},
	}))
	assert.Equal(t, []string{"MQTT"}, connectorNames(&config.Configuration{
		Broker:    "tcp://localhost:1883",
		RootTopic: "mesht/relay",
	}))
	assert.Equal(t, []string{"UDP"}, connectorNames(&config.Configuration{
		UDP: config.UDPConfig{Enabled: true},
	}))
}
