// Command arena-round drives one competition round: it submits each
// enabled bot's decision text to the server in shuffled order, then
// advances the round counter (which archives the finished round and pushes
// a fresh leaderboard to viewers).
//
// Decisions are read from a JSON file mapping bot id to raw agent output
// containing TRADE lines, e.g.
//
//	{"gary": "Momentum looks strong.\nTRADE: BUY 50 NVDA @ 142.30"}
//
// Bots without an entry sit the round out.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"os"

	"tradearena/internal/util"
	"tradearena/pkg/arena"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "arena server base URL")
	decisionsPath := flag.String("decisions", "", "JSON file mapping bot id to decision text")
	skipIncrement := flag.Bool("no-increment", false, "submit decisions without advancing the round")
	flag.Parse()

	logger := util.NewLogger(os.Getenv("LOG_LEVEL"))
	util.SetDefault(logger)

	token := os.Getenv("ARENA_AUTH_TOKEN")
	client := arena.NewClient(*serverURL, token)
	ctx := context.Background()

	decisions := map[string]string{}
	if *decisionsPath != "" {
		data, err := os.ReadFile(*decisionsPath)
		if err != nil {
			log.Fatalf("reading decisions: %v", err)
		}
		if err := json.Unmarshal(data, &decisions); err != nil {
			log.Fatalf("parsing decisions: %v", err)
		}
	}

	state, err := client.State(ctx)
	if err != nil {
		log.Fatalf("fetching state: %v", err)
	}
	if state.Game == nil {
		log.Fatal("no game initialized on server")
	}
	logger.Info("round starting", "round", state.Game.CurrentRound, "bots", len(state.Bots))

	// Shuffle so no bot gets a systematic first-mover advantage.
	bots := make([]arena.Bot, 0, len(state.Bots))
	for _, b := range state.Bots {
		if b.Enabled {
			bots = append(bots, b)
		}
	}
	rand.Shuffle(len(bots), func(i, j int) { bots[i], bots[j] = bots[j], bots[i] })

	for _, bot := range bots {
		text, ok := decisions[bot.ID]
		if !ok || text == "" {
			logger.Info("no decision, skipping", "bot", bot.ID)
			continue
		}

		outcomes, err := client.SubmitText(ctx, bot.ID, text)
		if err != nil {
			logger.Error("submission failed", "bot", bot.ID, "err", err)
			continue
		}
		for _, o := range outcomes {
			if o.Accepted {
				logger.Info("trade executed",
					"bot", bot.ID,
					"side", o.Trade.Side,
					"shares", o.Trade.Shares,
					"symbol", o.Trade.Symbol,
					"price", o.Trade.Price,
				)
			} else {
				logger.Info("trade rejected", "bot", bot.ID, "code", o.Code, "reason", o.Reason)
			}
		}
	}

	if *skipIncrement {
		return
	}

	round, err := client.IncrementRound(ctx)
	if err != nil {
		log.Fatalf("incrementing round: %v", err)
	}
	logger.Info("round complete", "nextRound", round)
}
