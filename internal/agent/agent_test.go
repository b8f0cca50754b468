package agent

import (
	"errors"
	"testing"
)

func TestParseBackend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Backend
		wantErr bool
	}{
		{in: "kilo", want: BackendKilo},
		{in: " Copilot ", want: BackendCopilot},
		{in: "PI", want: BackendPi},
		{in: "opencode", want: BackendOpencode},
		{in: "", wantErr: true},
		{in: "gpt", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseBackend(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownBackend) {
					t.Fatalf("err = %v, want ErrUnknownBackend", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseBackend(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "empty", cfg: Config{}},
		{
			name: "valid",
			cfg: Config{Commands: map[Backend]CommandTemplate{
				BackendPi: {Prompt: "pi -p {prompt} --session {session}"},
			}},
		},
		{
			name: "unknown backend",
			cfg: Config{Commands: map[Backend]CommandTemplate{
				"gpt": {Prompt: "gpt {prompt}"},
			}},
			wantErr: true,
		},
		{
			name: "missing prompt",
			cfg: Config{Commands: map[Backend]CommandTemplate{
				BackendKilo: {Clear: "kilo clear"},
			}},
			wantErr: true,
		},
		{
			name: "unterminated quote",
			cfg: Config{Commands: map[Backend]CommandTemplate{
				BackendKilo: {Prompt: `kilo "run {prompt}`},
			}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSessionName(t *testing.T) {
	t.Parallel()
	if got := SessionName(12345); got != "discord-rs-12345" {
		t.Errorf("SessionName = %q", got)
	}
}
