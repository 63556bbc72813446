package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/nowplaying/internal/formatter"
	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/shared"
)

var (
	_ list.Item = deviceItem{}
)

// deviceItem wraps [models.Device] to implement [list.Item].
type deviceItem struct {
	device models.Device
	self   bool
	now    time.Time
}

func (i deviceItem) FilterValue() string { return i.device.Name }
func (i deviceItem) Title() string {
	if i.self {
		return i.device.Name + " (this device)"
	}
	return i.device.Name
}
func (i deviceItem) Description() string {
	desc := fmt.Sprintf("%s • at %s", i.device.ID, shared.FormatDuration(i.device.ProgressMs))
	if i.device.Stale(i.now, formatter.StaleAfter) {
		desc += " • idle"
	}
	return desc
}

func deviceItems(state *models.SessionState, selfID string, now time.Time) []list.Item {
	if state == nil {
		return nil
	}
	items := make([]list.Item, len(state.Devices))
	for i, d := range state.Devices {
		items[i] = deviceItem{device: d, self: d.ID == selfID, now: now}
	}
	return items
}
