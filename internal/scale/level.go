package scale

// Level is the 1-5 AI reliance scale applied to a user's request.
type Level int

const (
	LevelNoAI          Level = 1 // done entirely by the human
	LevelIdeas         Level = 2 // AI used for ideas or structure only
	LevelEditing       Level = 3 // AI editing human-authored content
	LevelCollaborative Level = 4 // AI + human collaborative authorship
	LevelFullAI        Level = 5 // AI fully responsible for the content
)

// CollapseThreshold is the lowest level at which an assistant turn is
// collapsed and locked by default.
const CollapseThreshold = LevelEditing

func (l Level) Valid() bool {
	return l >= LevelNoAI && l <= LevelFullAI
}

// Collapses reports whether a turn scored at this level should be
// collapsed by default.
func (l Level) Collapses() bool {
	return l >= CollapseThreshold
}

// Max returns the highest level in levels, or LevelNoAI for an empty set.
func Max(levels []Level) Level {
	out := LevelNoAI
	for _, l := range levels {
		if l > out {
			out = l
		}
	}
	return out
}
