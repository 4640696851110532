package service

import "math"

const (
	levelBaseXP     = 100.0
	levelMultiplier = 2.2
)

// LevelInfo 由 xp 推导，不落库。
type LevelInfo struct {
	CurrentLevel int     `json:"currentLevel"`
	LevelFill    float64 `json:"levelFill"` // [0,1]，保留两位小数
	NextLevelXP  float64 `json:"nextLevelXp"`
}

// ComputeLevelInfo maps accumulated xp onto a discrete level.
//
// 等级门槛是几何数列 {100, 220, 484, ...}：a1 = 100, q = 2.2，
// 等级 n 的累计门槛为 a1*q^(n-1)，反解 n = logq(xp/a1) + 1。
// xp < 100（对数为负，xp=0 时为 -Inf）一律落在 0 级。
func ComputeLevelInfo(xp float64) LevelInfo {
	raw := math.Log(xp/levelBaseXP)/math.Log(levelMultiplier) + 1
	if raw < 0 || math.IsNaN(raw) {
		raw = 0
	}
	level := int(math.Floor(raw))

	currLevelXP := 0.0
	if level > 0 {
		currLevelXP = levelBaseXP * math.Pow(levelMultiplier, float64(level-1))
	}
	nextLevelXP := levelBaseXP * math.Pow(levelMultiplier, float64(level))

	fill := math.Round((xp-currLevelXP)/(nextLevelXP-currLevelXP)*100) / 100

	return LevelInfo{
		CurrentLevel: level,
		LevelFill:    fill,
		NextLevelXP:  nextLevelXP,
	}
}
