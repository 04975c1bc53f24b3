package bot

import "testing"

func TestValidateTicker(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{"lowercase", "algo", "algo", true},
		{"uppercase normalized", "ALGO", "algo", true},
		{"surrounding spaces", "  btc  ", "btc", true},
		{"digits allowed", "1inch", "1inch", true},
		{"max length", "abcdefghij", "abcdefghij", true},
		{"too long", "abcdefghijk", "", false},
		{"empty", "", "", false},
		{"inner space", "al go", "", false},
		{"punctuation", "btc!", "", false},
		{"cyrillic", "биток", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := validateTicker(tt.input)
			if tt.ok {
				if err != nil {
					t.Fatalf("expected %q to be valid, got %v", tt.input, err)
				}
				if got != tt.want {
					t.Fatalf("expected %q, got %q", tt.want, got)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected %q to be rejected", tt.input)
			}
		})
	}
}

func TestCommandName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"/start", "/start"},
		{"/START", "/start"},
		{"/list@BeeBot", "/list"},
		{"/admin", "/admin"},
	}
	for _, tt := range tests {
		if got := commandName(tt.input); got != tt.want {
			t.Errorf("commandName(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
