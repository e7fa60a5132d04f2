package di

import (
	"fmt"

	"github.com/aristath/forexbot/internal/config"
	"github.com/aristath/forexbot/internal/database"
	"github.com/aristath/forexbot/internal/history"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens the history database, applies its schema and
// creates the repositories on top of it.
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	historyDB, err := database.New(database.Config{
		Path:    cfg.HistoryDBPath(),
		Profile: database.ProfileStandard,
		Name:    "history",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize history database: %w", err)
	}

	if err := historyDB.Migrate(); err != nil {
		historyDB.Close()
		return nil, fmt.Errorf("failed to migrate history database: %w", err)
	}

	container.HistoryDB = historyDB
	container.HistoryRepo = history.NewRepository(historyDB.Conn())

	log.Info().Str("path", historyDB.Path()).Msg("History database initialized")
	return container, nil
}
