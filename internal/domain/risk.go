package domain

// Position of the sun as seen from a point on the earth.
// Altitude is in degrees above the horizon (negative below it) and azimuth in
// degrees clockwise from true north.
type SunPosition struct {
	Altitude float64 `json:"altitude"`
	Azimuth  float64 `json:"azimuth"`
}

type RiskLevel string

const (
	RiskCritical     RiskLevel = "Critical"
	RiskHigh         RiskLevel = "High"
	RiskModerateHigh RiskLevel = "Moderate-High"
	RiskModerate     RiskLevel = "Moderate"
	RiskLow          RiskLevel = "Low"
	RiskVeryLow      RiskLevel = "Very-Low"
)

// Sun-glare hazard for one segment at one instant. Derived and immutable.
type RiskAssessment struct {
	Score       float64     `json:"score"`
	Level       RiskLevel   `json:"level"`
	IsDaytime   bool        `json:"is_daytime"`
	Explanation string      `json:"explanation"`
	Sun         SunPosition `json:"sun"`
	Bearing     float64     `json:"bearing"`
	// Below the horizon AngleToSun does not affect the score.
	AngleToSun float64 `json:"angle_to_sun"`
}
