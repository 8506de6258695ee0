package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfigAssetsTrimsAndSkipsEmpty(t *testing.T) {
	cfg := &Config{AssetList: " EURUSD, GBPUSD ,, USDJPY"}
	assert.Equal(t, []string{"EURUSD", "GBPUSD", "USDJPY"}, cfg.Assets())
}

func validConfig() *Config {
	return &Config{
		Addr:           ":3002",
		UpstreamURL:    "http://example.test/rates",
		MongoURI:       "mongodb://localhost:27017",
		MongoDatabase:  "exchange_rates",
		AssetList:      "EURUSD",
		IngestWorkers:  4,
		IngestInterval: 500 * time.Millisecond,
		HistoryWindow:  30 * time.Minute,
		LogLevel:       "info",
		LogFormat:      "json",
	}
}

func TestValidateAcceptsValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidateRejectsEmptyAssetList(t *testing.T) {
	cfg := validConfig()
	cfg.AssetList = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.LogLevel = "verbose"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveInterval(t *testing.T) {
	cfg := validConfig()
	cfg.IngestInterval = 0
	assert.Error(t, cfg.Validate())
}
