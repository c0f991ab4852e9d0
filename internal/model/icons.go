package model

// Centralized icons for the UI components
// Single-width characters so columns line up in a terminal
const (
	IconError      = "✗"
	IconWarning    = "!"
	IconRefactor   = "↻"
	IconConvention = "·"
	IconRate       = "★"
	IconModule     = "▸"
	IconSelected   = "»"
)

// CategoryIcon returns the icon drawn next to a category heading.
func CategoryIcon(c Category) string {
	switch c {
	case CategoryError:
		return IconError
	case CategoryWarning:
		return IconWarning
	case CategoryRefactor:
		return IconRefactor
	case CategoryConvention:
		return IconConvention
	}
	return " "
}
