// Command arena-init bootstraps a fresh competition: it creates the game
// row and seeds the starting roster of bots. Safe to re-run; existing bots
// are left untouched.
package main

import (
	"context"
	"errors"
	"log"
	"os"

	"tradearena/internal/config"
	"tradearena/internal/domain"
	"tradearena/internal/store"
	"tradearena/internal/util"
)

// roster is the starting lineup: five constrained archetypes plus the
// unconstrained free agents.
var roster = []struct {
	id   string
	name string
	kind domain.BotKind
}{
	{"turtle", "Turtle", domain.KindTurtle},
	{"degen", "Degen", domain.KindDegen},
	{"boomer", "Boomer", domain.KindBoomer},
	{"quant", "Quant", domain.KindQuant},
	{"doomer", "Doomer", domain.KindDoomer},
	{"gary", "Gary", domain.KindFreeAgent},
	{"diana", "Diana", domain.KindFreeAgent},
	{"mel", "Mel", domain.KindFreeAgent},
	{"vince", "Vince", domain.KindFreeAgent},
	{"rei", "Rei", domain.KindFreeAgent},
}

func main() {
	cfgPath := "config/arena.yaml"
	if p := os.Getenv("ARENA_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level)
	util.SetDefault(logger)

	sqlitePath := cfg.Storage.SQLitePath
	if sqlitePath == "" {
		sqlitePath = "data/arena.db"
	}
	st, err := store.NewSQLiteStore(sqlitePath)
	if err != nil {
		log.Fatalf("opening store: %v", err)
	}
	defer st.Close()

	ctx := context.Background()

	if err := st.InitGame(ctx, cfg.Game.StartingCash); err != nil {
		log.Fatalf("initializing game: %v", err)
	}
	logger.Info("game initialized", "startingCash", cfg.Game.StartingCash)

	created := 0
	for _, b := range roster {
		_, err := st.GetBot(ctx, b.id)
		if err == nil {
			logger.Info("bot exists, skipping", "bot", b.id)
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			log.Fatalf("checking bot %s: %v", b.id, err)
		}

		bot := &domain.Bot{
			ID:         b.id,
			Name:       b.name,
			Kind:       b.kind,
			Cash:       cfg.Game.StartingCash,
			TotalValue: cfg.Game.StartingCash,
			Enabled:    true,
		}
		if err := st.CreateBot(ctx, bot); err != nil {
			log.Fatalf("creating bot %s: %v", b.id, err)
		}
		logger.Info("bot created", "bot", b.id, "kind", b.kind)
		created++
	}

	logger.Info("bootstrap complete", "created", created, "roster", len(roster))
}
