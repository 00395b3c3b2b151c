package config

import "testing"

func TestExpandWith(t *testing.T) {
	env := map[string]string{"HOME": "/home/plot", "EMPTY": ""}
	getenv := func(k string) string { return env[k] }

	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"${HOME}/x", "/home/plot/x"},
		{"$HOME/x", "/home/plot/x"},
		{"${MISSING}", ""},
		{"${MISSING:-fallback}", "fallback"},
		{"${EMPTY:-fallback}", "fallback"},
		{"${HOME:-fallback}", "/home/plot"},
		{"a ${HOME} b $HOME", "a /home/plot b /home/plot"},
		{"cost $5", "cost $5"},
	}
	for _, tt := range tests {
		if got := expandWith(tt.in, getenv); got != tt.want {
			t.Errorf("expandWith(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("VELLOGD_TEST_DIR", "/srv")
	if got := ExpandEnv("${VELLOGD_TEST_DIR}/sock"); got != "/srv/sock" {
		t.Errorf("ExpandEnv() = %q", got)
	}
}
