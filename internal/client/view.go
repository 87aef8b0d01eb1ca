package client

// State is the lifecycle of a single submission.
type State int

const (
	Idle State = iota
	Loading
	Error
	Success
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Error:
		return "error"
	case Success:
		return "success"
	default:
		return "idle"
	}
}

// View is the rendering surface the client drives. Entering Loading disables
// submit controls and hides the previous answer and error; ShowError keeps the
// answer hidden.
type View interface {
	SetState(State)
	ShowError(message string)
	ShowAnswer(html string)
	EnableFollowUps(enabled bool)
	ClearInput()
}

// NopView discards every update.
type NopView struct{}

func (NopView) SetState(State)       {}
func (NopView) ShowError(string)     {}
func (NopView) ShowAnswer(string)    {}
func (NopView) EnableFollowUps(bool) {}
func (NopView) ClearInput()          {}
