package installer

// Phase is the stage of a single package install. Phases only move forward.
type Phase int

const (
	// PhasePreparing covers dependency resolution before any download.
	PhasePreparing Phase = iota
	// PhaseDownloading is entered on the first download progress line.
	PhaseDownloading
	// PhaseInstalling is entered when the installer starts unpacking.
	PhaseInstalling
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhasePreparing:
		return "preparing"
	case PhaseDownloading:
		return "downloading"
	case PhaseInstalling:
		return "installing"
	default:
		return "unknown"
	}
}

// advance moves to next if that is a forward transition and reports whether
// the phase changed.
func (p *Phase) advance(next Phase) bool {
	if next <= *p {
		return false
	}
	*p = next
	return true
}
