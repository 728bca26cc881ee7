package models

// DeviceRecommendation ranks a candidate device for handing off a
// context type. Read-only; never persisted.
type DeviceRecommendation struct {
	TargetDevice  Device   `json:"targetDevice"`
	Reason        string   `json:"reason"`
	Confidence    float64  `json:"confidence"` // 0..1
	Benefits      []string `json:"benefits"`
	Requirements  []string `json:"requirements"`
	EstimatedTime int64    `json:"estimatedTime"` // milliseconds
}
