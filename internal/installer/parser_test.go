package installer

import (
	"strings"
	"testing"
)

func TestParser_DownloadScaling(t *testing.T) {
	p := NewParser()

	ev, ok := p.Feed("  Downloading easyocr-1.7.1-py3-none-any.whl (2.9 MB) 80%")
	if !ok {
		t.Fatal("download line should emit an event")
	}
	if ev.Percent != 40 {
		t.Errorf("percent: got %d, want 40", ev.Percent)
	}
	if ev.Message != "Downloading: easyocr-1.7.1-py3-none-any.whl (80%)" {
		t.Errorf("message: got %q", ev.Message)
	}
	if p.Phase() != PhaseDownloading {
		t.Errorf("phase: got %v, want downloading", p.Phase())
	}
}

func TestParser_DownloadFloors(t *testing.T) {
	tests := []struct {
		reported string
		want     int
	}{
		{"0", 0},
		{"1", 0},
		{"33", 16},
		{"99", 49},
		{"100", 50},
	}
	for _, tt := range tests {
		p := NewParser()
		ev, ok := p.Feed("Downloading torch.whl " + tt.reported + "%")
		if !ok || ev.Percent != tt.want {
			t.Errorf("%s%%: got %d (ok=%v), want %d", tt.reported, ev.Percent, ok, tt.want)
		}
	}
}

func TestParser_InstallingMarkerForcesFifty(t *testing.T) {
	for _, last := range []string{"10", "64", "100"} {
		p := NewParser()
		p.Feed("Downloading numpy.whl (18 MB) " + last + "%")

		ev, ok := p.Feed("Installing collected packages: numpy, easyocr")
		if !ok {
			t.Fatal("installing marker should emit an event")
		}
		if ev.Percent != 50 {
			t.Errorf("after %s%%: got %d, want 50", last, ev.Percent)
		}
		if ev.Message != "Download complete. Installing packages..." {
			t.Errorf("message: got %q", ev.Message)
		}
		if p.Phase() != PhaseInstalling {
			t.Errorf("phase: got %v, want installing", p.Phase())
		}
	}
}

func TestParser_InstallingMarkerOnce(t *testing.T) {
	p := NewParser()
	p.Feed("Installing collected packages: a")
	if _, ok := p.Feed("Installing collected packages: b"); ok {
		t.Error("second installing marker should be a no-op")
	}
}

func TestParser_InstallingWithoutDownload(t *testing.T) {
	p := NewParser()
	p.Feed("Collecting six")
	ev, ok := p.Feed("Installing collected packages: six")
	if !ok || ev.Percent != 50 {
		t.Errorf("skipping the download phase should still jump to 50, got %+v", ev)
	}
}

func TestParser_Collecting(t *testing.T) {
	p := NewParser()

	ev, ok := p.Feed("Collecting easyocr")
	if !ok {
		t.Fatal("collecting line should emit while preparing")
	}
	if ev.Percent != 0 || ev.Message != "Finding requirement: easyocr..." {
		t.Errorf("unexpected event %+v", ev)
	}

	ev, ok = p.Feed("Collecting torch>=1.13 (from easyocr)")
	if !ok || ev.Message != "Finding requirement: torch>=1.13..." {
		t.Errorf("unexpected event %+v", ev)
	}

	p.Feed("Downloading torch.whl 5%")
	if _, ok := p.Feed("Collecting pillow"); ok {
		t.Error("collecting lines are ignored once downloading")
	}
}

func TestParser_SuccessNudges(t *testing.T) {
	p := NewParser()

	if _, ok := p.Feed("Successfully installed six-1.16.0"); ok {
		t.Error("success marker is ignored before installing")
	}

	p.Feed("Installing collected packages: six")
	last := p.Percent()
	for i := 0; i < 40; i++ {
		ev, ok := p.Feed("Successfully installed six-1.16.0")
		if !ok {
			t.Fatalf("success line %d should emit", i)
		}
		if ev.Percent < last {
			t.Fatalf("percent decreased: %d -> %d", last, ev.Percent)
		}
		if ev.Percent > 98 {
			t.Fatalf("percent exceeded 98: %d", ev.Percent)
		}
		last = ev.Percent
	}
	if last != 98 {
		t.Errorf("expected to settle at 98, got %d", last)
	}

	p2 := NewParser()
	p2.Feed("Installing collected packages: six")
	ev, _ := p2.Feed("Successfully installed six-1.16.0")
	if ev.Percent != 52 {
		t.Errorf("first nudge: got %d, want 52", ev.Percent)
	}
}

func TestParser_PhaseNeverRegresses(t *testing.T) {
	p := NewParser()
	p.Feed("Downloading a.whl 50%")
	p.Feed("Installing collected packages: a")

	if _, ok := p.Feed("Downloading late.whl 10%"); ok {
		t.Error("download lines after installing starts should not emit")
	}
	if p.Phase() != PhaseInstalling {
		t.Errorf("phase regressed to %v", p.Phase())
	}
	if p.Percent() != 50 {
		t.Errorf("percent changed to %d", p.Percent())
	}
}

func TestParser_OtherLinesRetained(t *testing.T) {
	p := NewParser()
	lines := []string{
		"Collecting easyocr",
		"  Using cached easyocr-1.7.1-py3-none-any.whl",
		"WARNING: something odd",
		"ERROR: No matching distribution found for easyocr",
	}
	for _, l := range lines[1:] {
		if _, ok := p.Feed(l); ok {
			t.Errorf("line %q should not emit", l)
		}
	}
	p.Feed(lines[0])

	_, diagnostic, ok := p.Finish(1)
	if ok {
		t.Fatal("non-zero exit should fail")
	}
	if !strings.HasPrefix(diagnostic, "installer failed with return code 1.") {
		t.Errorf("unexpected diagnostic header: %q", diagnostic)
	}
	for _, l := range lines {
		if !strings.Contains(diagnostic, l) {
			t.Errorf("diagnostic missing line %q", l)
		}
	}
}

func TestParser_FinishSuccess(t *testing.T) {
	p := NewParser()
	p.Feed("Installing collected packages: six")

	final, output, ok := p.Finish(0)
	if !ok {
		t.Fatal("exit 0 should succeed")
	}
	if final.Percent != 100 || final.Message != "Installation complete." {
		t.Errorf("unexpected final event %+v", final)
	}
	if output != "Installing collected packages: six\n" {
		t.Errorf("unexpected output %q", output)
	}
}

func TestPhase_String(t *testing.T) {
	tests := map[Phase]string{
		PhasePreparing:   "preparing",
		PhaseDownloading: "downloading",
		PhaseInstalling:  "installing",
		Phase(42):        "unknown",
	}
	for phase, want := range tests {
		if got := phase.String(); got != want {
			t.Errorf("Phase(%d).String() = %q, want %q", phase, got, want)
		}
	}
}

func TestPhase_Advance(t *testing.T) {
	p := PhaseDownloading
	if p.advance(PhasePreparing) {
		t.Error("advance backwards should be refused")
	}
	if p.advance(PhaseDownloading) {
		t.Error("advance to the same phase should be a no-op")
	}
	if !p.advance(PhaseInstalling) || p != PhaseInstalling {
		t.Error("forward advance should succeed")
	}
}
