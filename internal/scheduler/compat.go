package scheduler

import (
	"fmt"

	"github.com/crossdev/syncmesh/pkg/models"
)

// Minimum screen footprint for document contexts.
const (
	minDocumentWidth  = 320
	minDocumentHeight = 480
)

// checkCompatibility decides whether a device can receive a context
// type. Workflow has no hard requirement; desktop preference for it is
// a recommendation concern, not a gate.
func checkCompatibility(contextType models.ContextType, device *models.Device) error {
	caps := device.Capabilities
	switch contextType {
	case models.ContextConversation:
		if !caps.HasInput(models.InputKeyboard) && !caps.HasInput(models.InputVoice) {
			return fmt.Errorf("device %s has neither keyboard nor voice input", device.ID)
		}
	case models.ContextSearch:
		if !caps.HasConnectivity(models.ConnWifi) && !caps.HasConnectivity(models.ConnCellular) {
			return fmt.Errorf("device %s has neither wifi nor cellular connectivity", device.ID)
		}
	case models.ContextDocument:
		if caps.Screen.Width < minDocumentWidth || caps.Screen.Height < minDocumentHeight {
			return fmt.Errorf("device %s screen %dx%d is below the %dx%d document minimum",
				device.ID, caps.Screen.Width, caps.Screen.Height, minDocumentWidth, minDocumentHeight)
		}
	case models.ContextWorkflow:
		// No hard requirement.
	}
	return nil
}
