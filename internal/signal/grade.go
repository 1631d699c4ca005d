package signal

import "strings"

// GradePick grades a stored pick against the final score. Double-chance
// semantics: 1X wins when the home side did not lose, X2 when the away side
// did not lose. Pick texts that carry neither marker grade VOID.
func GradePick(pick string, awayScore, homeScore int) Status {
	switch {
	case strings.Contains(pick, "1X"):
		if homeScore >= awayScore {
			return StatusWin
		}
		return StatusLose
	case strings.Contains(pick, "X2"):
		if awayScore >= homeScore {
			return StatusWin
		}
		return StatusLose
	default:
		return StatusVoid
	}
}
