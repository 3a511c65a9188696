package db

// Colour is the side a player had in a game.
type Colour string

const (
	White Colour = "white"
	Black Colour = "black"
)

// Opponent returns the other side.
func (c Colour) Opponent() Colour {
	if c == White {
		return Black
	}
	return White
}

// UnknownOpening is stored when no ECO code could be read from the game notation.
const UnknownOpening = ""

// GameRow is one persisted game of the tracked player.
type GameRow struct {
	URLHash        string // hex MD5 of GameURL, primary key
	TimeClass      string // bullet, blitz, rapid, daily
	PlayerColour   Colour
	Opening        string // ECO code such as "B10", or UnknownOpening
	GameURL        string
	PlayerResult   string // e.g. "win", "resigned", "timeout", "agreed"
	OpponentResult string
}
