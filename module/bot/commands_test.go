package bot

import "testing"

func TestCommandRegistryConsistent(t *testing.T) {
	registry := commandRegistry()

	want := []string{"activity", "help", "ping", "server", "top", "user"}
	if len(registry) != len(want) {
		t.Fatalf("registry size = %d, want %d", len(registry), len(want))
	}

	for _, name := range want {
		cmd, ok := registry[name]
		if !ok {
			t.Fatalf("command %q missing from registry", name)
		}
		if cmd.data == nil || cmd.run == nil {
			t.Fatalf("command %q incomplete", name)
		}
		if cmd.data.Name != name {
			t.Fatalf("command %q registered under key %q", cmd.data.Name, name)
		}
		if cmd.data.Description == "" {
			t.Fatalf("command %q has no description", name)
		}
	}
}

func TestFormatVoiceTime(t *testing.T) {
	if got := formatVoiceTime(0); got != "0s" {
		t.Errorf("formatVoiceTime(0) = %q", got)
	}
	if got := formatVoiceTime(125); got != "2m5s" {
		t.Errorf("formatVoiceTime(125) = %q", got)
	}
	if got := formatVoiceTime(3725); got != "1h2m5s" {
		t.Errorf("formatVoiceTime(3725) = %q", got)
	}
}
