package engagement

// Level curve: level = floor(sqrt(lifetime/100)) + 1, so level L starts at
// 100*(L-1)^2 lifetime points. There is no cap.

// PointsForLevel returns the lifetime points at which level begins.
func PointsForLevel(level int) int64 {
	if level <= 1 {
		return 0
	}
	n := int64(level - 1)
	return 100 * n * n
}

// LevelForPoints returns the level for a lifetime point total.
// Negative totals are treated as zero.
func LevelForPoints(points int64) int {
	if points <= 0 {
		return 1
	}
	return int(isqrt(points/100)) + 1
}

// CheckLevelUp reports whether moving from oldPoints to newPoints crosses
// at least one level boundary, and the resulting level.
func CheckLevelUp(oldPoints, newPoints int64) (bool, int) {
	newLevel := LevelForPoints(newPoints)
	return newLevel > LevelForPoints(oldPoints), newLevel
}

// PointsToNextLevel returns lifetime points still needed for the next level.
func PointsToNextLevel(points int64) int64 {
	if points < 0 {
		points = 0
	}
	return PointsForLevel(LevelForPoints(points)+1) - points
}

// LevelProgressPct returns progress toward the next level (0.0–100.0).
func LevelProgressPct(points int64) float64 {
	if points < 0 {
		points = 0
	}
	level := LevelForPoints(points)
	floor := PointsForLevel(level)
	span := PointsForLevel(level+1) - floor
	if span <= 0 {
		return 100.0
	}
	return float64(points-floor) / float64(span) * 100.0
}

// isqrt is floor(sqrt(n)) for n >= 0, exact for every int64.
func isqrt(n int64) int64 {
	if n < 2 {
		return n
	}
	// Newton iteration from an upper bound converges monotonically down.
	x := n/2 + 1
	y := (x + n/x) / 2
	for y < x {
		x = y
		y = (x + n/x) / 2
	}
	return x
}
