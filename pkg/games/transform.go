package games

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/japaniel/chessarchive/pkg/chessapi"
	"github.com/japaniel/chessarchive/pkg/db"
	"github.com/japaniel/chessarchive/pkg/logging"
	"github.com/japaniel/chessarchive/pkg/pgn"
)

// ValidationError reports a raw game that cannot be turned into a row.
type ValidationError struct {
	URL    string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.URL == "" {
		return "invalid game: " + e.Reason
	}
	return fmt.Sprintf("invalid game %s: %s", e.URL, e.Reason)
}

// URLHash returns the hex MD5 digest of the UTF-8 game URL.
func URLHash(gameURL string) string {
	sum := md5.Sum([]byte(gameURL))
	return hex.EncodeToString(sum[:])
}

// Stats counts what TransformAll did with a batch of games.
type Stats struct {
	Total   int
	Rows    int
	Variant int // skipped, rules other than standard chess
	Invalid int // skipped, failed validation
}

// Transformer turns raw archive games of one tracked player into rows.
type Transformer struct {
	Username string
	Logger   *zap.Logger
}

// NewTransformer creates a Transformer for username.
func NewTransformer(username string, logger *zap.Logger) *Transformer {
	return &Transformer{Username: username, Logger: logging.OrNop(logger)}
}

// Transform converts g. ok is false when g is a chess variant and should be
// skipped. A *ValidationError is returned when required fields are missing or
// the tracked player is on neither side.
func (t *Transformer) Transform(g chessapi.Game) (row db.GameRow, ok bool, err error) {
	if g.Rules == "" {
		return db.GameRow{}, false, &ValidationError{URL: g.URL, Reason: "missing rules"}
	}
	if g.Rules != chessapi.StandardRules {
		return db.GameRow{}, false, nil
	}
	if err := validate(g); err != nil {
		return db.GameRow{}, false, err
	}

	colour, err := t.colourOf(g)
	if err != nil {
		return db.GameRow{}, false, err
	}
	player, opponent := side(g, colour), side(g, colour.Opponent())

	return db.GameRow{
		URLHash:        URLHash(g.URL),
		TimeClass:      g.TimeClass,
		PlayerColour:   colour,
		Opening:        pgn.ExtractECO(g.PGN),
		GameURL:        g.URL,
		PlayerResult:   player.Result,
		OpponentResult: opponent.Result,
	}, true, nil
}

// TransformAll converts games, dropping variants and invalid records.
func (t *Transformer) TransformAll(games []chessapi.Game) ([]db.GameRow, Stats) {
	log := logging.OrNop(t.Logger)
	stats := Stats{Total: len(games)}
	rows := make([]db.GameRow, 0, len(games))
	for _, g := range games {
		row, ok, err := t.Transform(g)
		switch {
		case err != nil:
			stats.Invalid++
			log.Warn("Skipping game", zap.Error(err))
		case !ok:
			stats.Variant++
			log.Debug("Skipping variant", zap.String("url", g.URL), zap.String("rules", g.Rules))
		default:
			if row.Opening == db.UnknownOpening {
				log.Debug("No opening code in notation", zap.String("url", g.URL))
			}
			stats.Rows++
			rows = append(rows, row)
		}
	}
	return rows, stats
}

func validate(g chessapi.Game) error {
	var missing []string
	if g.TimeClass == "" {
		missing = append(missing, "time_class")
	}
	if g.URL == "" {
		missing = append(missing, "url")
	}
	if g.White == nil {
		missing = append(missing, "white")
	}
	if g.Black == nil {
		missing = append(missing, "black")
	}
	if len(missing) > 0 {
		return &ValidationError{URL: g.URL, Reason: "missing " + strings.Join(missing, ", ")}
	}
	return nil
}

// colourOf matches the tracked username against both sides. Usernames are
// compared case-insensitively, as the archive API does.
func (t *Transformer) colourOf(g chessapi.Game) (db.Colour, error) {
	switch {
	case strings.EqualFold(g.White.Username, t.Username):
		return db.White, nil
	case strings.EqualFold(g.Black.Username, t.Username):
		return db.Black, nil
	default:
		return "", &ValidationError{
			URL:    g.URL,
			Reason: fmt.Sprintf("player %q is neither white (%q) nor black (%q)", t.Username, g.White.Username, g.Black.Username),
		}
	}
}

func side(g chessapi.Game, c db.Colour) *chessapi.Player {
	if c == db.White {
		return g.White
	}
	return g.Black
}
