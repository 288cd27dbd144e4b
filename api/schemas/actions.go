package schemas

// ActionKind tags every tool by how the loop treats its result.
type ActionKind int

const (
	// KindEnvironment actions change the browser, so a fresh snapshot follows.
	KindEnvironment ActionKind = iota
	// KindPassThrough actions leave the browser untouched; the previous
	// structured view is carried forward instead of re-snapshotting.
	KindPassThrough
	// KindTerminal actions end the run with a final answer.
	KindTerminal
)

func (k ActionKind) String() string {
	switch k {
	case KindTerminal:
		return "terminal"
	case KindPassThrough:
		return "pass-through"
	default:
		return "environment"
	}
}

// IsTerminal reports whether the action ends the run.
func (k ActionKind) IsTerminal() bool { return k == KindTerminal }
