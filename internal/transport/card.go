package transport

// Card is a platform-neutral rich message (Discord: embed).
type Card struct {
	Title       string
	Description string
	URL         string
	Color       int
	Footer      string
	ImageURL    string
	Fields      []CardField
}

type CardField struct {
	Name   string
	Value  string
	Inline bool
}

// Navigation control identities. These are the custom ids of the fixed
// three-button row attached to delivered cards.
const (
	ControlPrevious = "previous_post"
	ControlNext     = "next_post"
	ControlComments = "show_comments"
)

// Control is one button of the navigation row.
type Control struct {
	ID    string
	Label string
}

// Controls returns the fixed navigation row in display order.
func Controls() []Control {
	return []Control{
		{ID: ControlPrevious, Label: "Previous"},
		{ID: ControlNext, Label: "Next"},
		{ID: ControlComments, Label: "Comments"},
	}
}
