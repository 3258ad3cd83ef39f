package version

import "testing"

func TestDefaults(t *testing.T) {
	if Version != "dev" {
		t.Errorf("default Version = %q, want %q", Version, "dev")
	}
	if GitCommit != "unknown" {
		t.Errorf("default GitCommit = %q, want %q", GitCommit, "unknown")
	}
}

func TestLine(t *testing.T) {
	prev, prevCommit := Version, GitCommit
	defer func() { Version, GitCommit = prev, prevCommit }()

	if got := Line("newtrace"); got != "newtrace dev build (version is set with -ldflags)" {
		t.Errorf("dev Line() = %q", got)
	}

	Version, GitCommit = "v0.3.0", "abc1234"
	if got := Line("newtrace"); got != "newtrace v0.3.0 (abc1234)" {
		t.Errorf("release Line() = %q", got)
	}
	if got := Info(); got != "v0.3.0 (abc1234) built unknown" {
		t.Errorf("Info() = %q", got)
	}
}
