// Package quality 处理感知音质评分 (如 ViSQOL MOS) 的换算。
package quality

// DefaultTarget 默认目标音质
const DefaultTarget float32 = 4.3

const (
	scoreFloor = 4.1
	// 把 4.0-4.75 的区间放大到 0-5
	scaleValue = 5.0 / (4.75 - 4.0)
)

// TransformScore 把原始评分换算为更直观的 0-5 分值。
// 低于 4.1 的评分统一视为 1.0。
func TransformScore(score float32) float32 {
	if score < scoreFloor {
		return 1.0
	}
	return (score - scoreFloor) * scaleValue
}
