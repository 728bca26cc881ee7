package recommend

import (
	"fmt"
	"sort"

	"github.com/crossdev/syncmesh/internal/registry"
	"github.com/crossdev/syncmesh/pkg/models"
)

// lowBatteryThreshold is the battery level at or below which a device
// is penalized and asked to charge.
const lowBatteryThreshold = 0.2

// minConfidence is the exclusive lower bound for a device to appear in
// the results at all.
const minConfidence = 0.5

// estimatedBase is the per-context-type transfer estimate in ms before
// device and connectivity adjustments.
var estimatedBase = map[models.ContextType]float64{
	models.ContextConversation: 2000,
	models.ContextSearch:       1000,
	models.ContextDocument:     5000,
	models.ContextWorkflow:     3000,
}

// Engine scores candidate devices for handing off a context type.
// Read-only over the registry; never mutates any state.
type Engine struct {
	registry *registry.Registry
}

// NewEngine creates a recommendation engine.
func NewEngine(reg *registry.Registry) *Engine {
	return &Engine{registry: reg}
}

// Recommend ranks devices other than the current one for the given
// context type, sorted by descending confidence. Devices scoring at or
// below the threshold are excluded.
func (e *Engine) Recommend(contextType models.ContextType, currentDeviceID string) []models.DeviceRecommendation {
	current, _ := e.registry.Get(currentDeviceID)

	var out []models.DeviceRecommendation
	for _, candidate := range e.registry.List() {
		if candidate.ID == currentDeviceID {
			continue
		}

		rec := e.Score(contextType, current, candidate)
		if rec.Confidence > minConfidence {
			out = append(out, rec)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

// Score computes the confidence and rationale for one candidate
// before the threshold filter is applied.
func (e *Engine) Score(contextType models.ContextType, current, candidate *models.Device) models.DeviceRecommendation {
	confidence := 0.0
	var benefits, requirements []string

	switch contextType {
	case models.ContextConversation:
		if candidate.IsDesktopClass() && current != nil && current.IsMobileClass() {
			confidence += 0.3
			benefits = append(benefits, "larger screen and full keyboard for long conversations")
		}
		if candidate.Capabilities.HasInput(models.InputVoice) {
			confidence += 0.2
			benefits = append(benefits, "voice input available")
		}
	case models.ContextSearch:
		if current != nil && candidate.Capabilities.Screen.Width > current.Capabilities.Screen.Width {
			confidence += 0.2
			benefits = append(benefits, "more screen space for results")
		}
		if candidate.IsDesktopClass() {
			confidence += 0.3
			benefits = append(benefits, "desktop browsing for deeper research")
		}
	case models.ContextDocument:
		if candidate.Type == models.DeviceTablet || candidate.IsDesktopClass() {
			confidence += 0.4
			benefits = append(benefits, "comfortable reading and editing surface")
		}
		if candidate.Capabilities.Screen.Width >= 1024 {
			confidence += 0.2
			benefits = append(benefits, "full document layout fits on screen")
		}
	case models.ContextWorkflow:
		if candidate.IsDesktopClass() {
			confidence += 0.5
			benefits = append(benefits, "desktop tooling for multi-step workflows")
		}
	}

	if candidate.Status == models.StatusOnline {
		confidence += 0.1
	}
	if battery := candidate.Capabilities.Battery; battery != nil {
		if battery.Level > lowBatteryThreshold {
			confidence += 0.1
		} else {
			confidence -= 0.2
			requirements = append(requirements, "charging recommended before handoff")
		}
	}

	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return models.DeviceRecommendation{
		TargetDevice:  *candidate,
		Reason:        fmt.Sprintf("Your %s %q is well suited for %s tasks", candidate.Type, candidate.Name, contextType),
		Confidence:    confidence,
		Benefits:      benefits,
		Requirements:  requirements,
		EstimatedTime: estimateTransferTime(contextType, candidate),
	}
}

// estimateTransferTime adjusts the per-type base by device class and
// connectivity multipliers.
func estimateTransferTime(contextType models.ContextType, device *models.Device) int64 {
	estimate := estimatedBase[contextType]

	switch {
	case device.IsMobileClass():
		estimate *= 1.2
	case device.IsDesktopClass():
		estimate *= 0.8
	}

	switch {
	case device.Capabilities.HasConnectivity(models.ConnWifi):
		estimate *= 0.9
	case device.Capabilities.HasConnectivity(models.ConnCellular):
		estimate *= 1.3
	}

	return int64(estimate)
}
