// Package decision converts analysis findings into escalation outcomes.
package decision

// Action is what the enforcement layer should do about one frame. A flat
// variant set; graduated navigation actions replace blur rather than extend
// it.
type Action uint32

const (
	ActionNone Action = iota
	ActionSelectiveBlur
	ActionFullScreenBlur
	ActionBlockAndWarn
	ActionImmediateClose
	ActionScrollAway
	ActionNavigateBack
	ActionAutoCloseApp
	ActionGentleRedirect
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "no_action"
	case ActionSelectiveBlur:
		return "selective_blur"
	case ActionFullScreenBlur:
		return "full_screen_blur"
	case ActionBlockAndWarn:
		return "block_and_warn"
	case ActionImmediateClose:
		return "immediate_close"
	case ActionScrollAway:
		return "scroll_away"
	case ActionNavigateBack:
		return "navigate_back"
	case ActionAutoCloseApp:
		return "auto_close_app"
	case ActionGentleRedirect:
		return "gentle_redirect"
	default:
		return "no_action"
	}
}

// MarshalJSON encodes the action as its string name.
func (a Action) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// Blurs reports whether the action obscures screen content rather than
// navigating away from it.
func (a Action) Blurs() bool {
	return a == ActionSelectiveBlur || a == ActionFullScreenBlur
}
