package staging

import (
	"fmt"
	"strings"

	"stagevision-backend-go/internal/models"
)

// BuildPrompt assembles the instruction text for the generation model.
// withMarkers toggles the layout-guide preamble: the colored marks on the
// guide are positioning hints only and must never appear in the output.
func BuildPrompt(style, roomType, additionalPrompt string, markers []models.MarkerPayload, withMarkers bool) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Take the uploaded image of an empty room and add realistic furniture appropriate for the room's function (%s). ", roomType)
	b.WriteString("Do not change or alter the existing architecture, floor, ceiling, windows, walls, or lighting. ")
	b.WriteString("Only add furniture in a natural, well-composed way. ")
	fmt.Fprintf(&b, "Make sure the furniture matches the %s style and fits naturally into the scene. ", style)
	b.WriteString("Keep shadows, perspective, and lighting consistent with the original image.\n")
	fmt.Fprintf(&b, "Room Type: %s\nStyle: %s\n", roomType, style)
	if additionalPrompt != "" {
		fmt.Fprintf(&b, "Additional Requirements: %s\n", additionalPrompt)
	}

	if withMarkers && len(markers) > 0 {
		b.WriteString("\nThe second image is a layout guide: a copy of the room photo with colored circular marks")
		b.WriteString(" and outlined areas. Each mark indicates WHERE a piece of furniture should be placed.")
		b.WriteString(" The marks and outlines are positioning hints only and must NEVER appear in the rendered")
		b.WriteString(" output; render clean furniture in the marked positions instead.\n")
		b.WriteString("Placement instructions per mark:\n")
		for i, m := range markers {
			instruction := m.Instruction
			if instruction == "" {
				instruction = "place a fitting piece of furniture here"
			}
			fmt.Fprintf(&b, "%d. %s mark: %s", i+1, m.Color, instruction)
			if m.RefImage != "" {
				b.WriteString(" (a reference photo for this item is attached)")
			}
			b.WriteString("\n")
		}
	} else {
		b.WriteString("\nStage the room naturally with a cohesive furniture arrangement of your choosing.\n")
	}

	b.WriteString("\nFocus on creating a cohesive, professionally staged space that would appeal to potential buyers")
	b.WriteString(" or renters while maintaining the original room's architectural integrity.")
	b.WriteString(" Generate a new image showing this room with appropriate furniture added.")
	return b.String()
}
