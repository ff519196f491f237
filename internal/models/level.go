package models

// Level is the score-derived rank shown to farmers.
type Level struct {
	Number        int    `json:"level"`
	Title         string `json:"title"`
	NextLevelAt   int    `json:"nextLevelAt"`
	PointsToLevel int    `json:"pointsToNextLevel"`
}

var levelTitles = []struct {
	below int
	title string
}{
	{100, "Beginner Farmer"},
	{300, "Growing Farmer"},
	{500, "Skilled Farmer"},
	{700, "Expert Farmer"},
	{900, "Eco Champion"},
}

// LevelNumber is floor(ecoScore/100)+1.
func LevelNumber(ecoScore int) int {
	if ecoScore < 0 {
		ecoScore = 0
	}
	return ecoScore/100 + 1
}

// LevelFor computes the level, title and distance to the next level.
func LevelFor(ecoScore int) Level {
	n := LevelNumber(ecoScore)
	title := "Eco Master"
	for _, t := range levelTitles {
		if ecoScore < t.below {
			title = t.title
			break
		}
	}
	next := n * 100
	return Level{Number: n, Title: title, NextLevelAt: next, PointsToLevel: next - max(ecoScore, 0)}
}
