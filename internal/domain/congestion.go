package domain

// Congestion levels on the 0-100 index
const (
	CongestionFreeFlow = "Free Flow"
	CongestionLight    = "Light"
	CongestionModerate = "Moderate"
	CongestionHeavy    = "Heavy"
	CongestionSevere   = "Severe"
)

// CongestionLevel returns human-readable level
func CongestionLevel(index float64) string {
	switch {
	case index >= 80:
		return CongestionSevere
	case index >= 60:
		return CongestionHeavy
	case index >= 40:
		return CongestionModerate
	case index >= 20:
		return CongestionLight
	default:
		return CongestionFreeFlow
	}
}
