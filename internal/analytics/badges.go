package analytics

type BadgeID string

const (
	BadgeCenturion    BadgeID = "centurion"
	BadgeTriggerHappy BadgeID = "trigger_happy"
	BadgeUnstoppable  BadgeID = "unstoppable"
	BadgeVeteran      BadgeID = "veteran"
)

type Badge struct {
	ID          BadgeID `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Icon        string  `json:"icon"`
}

var AllBadges = map[BadgeID]Badge{
	BadgeCenturion:    {ID: BadgeCenturion, Name: "Centurion", Description: "100+ clicks in a single game", Icon: "💯"},
	BadgeTriggerHappy: {ID: BadgeTriggerHappy, Name: "Trigger Happy", Description: "5+ clicks per second over a game", Icon: "🖱️"},
	BadgeUnstoppable:  {ID: BadgeUnstoppable, Name: "Unstoppable", Description: "3-game win streak", Icon: "🔥"},
	BadgeVeteran:      {ID: BadgeVeteran, Name: "Veteran", Description: "Played 10+ games", Icon: "🏅"},
}

// EvaluateGameBadges checks which badges a player earned in a single game.
func EvaluateGameBadges(stats PlayerGameStats) []Badge {
	var earned []Badge

	if stats.Clicks >= 100 {
		earned = append(earned, AllBadges[BadgeCenturion])
	}
	if stats.CPS >= 5.0 {
		earned = append(earned, AllBadges[BadgeTriggerHappy])
	}

	return earned
}

// EvaluateLifetimeBadges checks which badges a player earned across their career.
func EvaluateLifetimeBadges(stats PlayerLifetimeStats) []Badge {
	var earned []Badge

	if stats.WinStreak >= 3 {
		earned = append(earned, AllBadges[BadgeUnstoppable])
	}
	if stats.GamesPlayed >= 10 {
		earned = append(earned, AllBadges[BadgeVeteran])
	}

	return earned
}
