package chessapi

// Player is one side of a game as reported by the archive API.
type Player struct {
	Username string `json:"username"`
	Rating   int    `json:"rating"`
	// Result is the outcome token for this side: "win", "resigned",
	// "timeout", "checkmated", "agreed", "repetition", "stalemate", ...
	Result string `json:"result"`
}

// Accuracies holds the optional game review accuracy per side.
type Accuracies struct {
	White float64 `json:"white"`
	Black float64 `json:"black"`
}

// Game is one record of a monthly archive. Optional sub-objects are pointers
// so missing fields can be told apart from empty ones.
type Game struct {
	URL         string      `json:"url"`
	PGN         string      `json:"pgn"`
	TimeControl string      `json:"time_control"`
	TimeClass   string      `json:"time_class"`
	Rated       bool        `json:"rated"`
	EndTime     int64       `json:"end_time"`
	Rules       string      `json:"rules"`
	White       *Player     `json:"white"`
	Black       *Player     `json:"black"`
	Accuracies  *Accuracies `json:"accuracies,omitempty"`
}

// StandardRules is the rules tag of regular chess games; everything else is a variant.
const StandardRules = "chess"

type monthlyGames struct {
	Games []Game `json:"games"`
}
