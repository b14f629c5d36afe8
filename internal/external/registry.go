package external

import (
	"log/slog"

	"fleetgeo/internal/config"
)

// ClientRegistry holds the external map service clients.
type ClientRegistry struct {
	Tiles      TileProvider
	Directions DirectionsProvider
}

// NewClientRegistry builds the clients from configuration. Directions falls
// back to StubDirections in the local environment when no API key is set;
// everywhere else a missing key is sent as-is and the provider rejects it.
func NewClientRegistry(cfg *config.Config, logger *slog.Logger) *ClientRegistry {
	if logger == nil {
		logger = slog.Default()
	}

	reg := &ClientRegistry{
		Tiles: NewTileClient(TileClientConfig{
			BaseURL:   cfg.Tiles.ProviderURL,
			UserAgent: cfg.Tiles.UserAgent,
			Timeout:   cfg.Tiles.RequestTimeout,
			Logger:    logger.With("client", "tiles"),
		}),
	}

	if cfg.Directions.APIKey.IsEmpty() && cfg.Environment == "local" {
		logger.Info("directions API key not set; using stub directions provider",
			"environment", cfg.Environment,
		)
		reg.Directions = NewStubDirections(logger.With("mode", "stub"))
		return reg
	}

	reg.Directions = NewDirectionsClient(DirectionsClientConfig{
		BaseURL:   cfg.Directions.BaseURL,
		APIKey:    cfg.Directions.APIKey,
		UserAgent: cfg.Tiles.UserAgent,
		Timeout:   cfg.Directions.Timeout,
		Logger:    logger.With("client", "directions"),
	})
	return reg
}
