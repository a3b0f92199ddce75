package components

import (
	"fmt"

	"github.com/diagkit/licensecheck/internal/license"
	"github.com/diagkit/licensecheck/internal/tui/theme"
)

// RenderDisclosure renders the expired-group control, e.g. "▸ Expired (2)  [x] show".
func RenderDisclosure(count int, expanded bool) string {
	icon := theme.IconCollapsed
	action := "show"
	if expanded {
		icon = theme.IconExpanded
		action = "hide"
	}
	label := theme.UrgencyStyle(license.UrgencyExpired).Render(fmt.Sprintf("%s Expired (%d)", icon, count))
	return label + "  " + theme.MutedStyle.Render("[x] "+action)
}
