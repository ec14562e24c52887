package config

import (
	"slices"
	"strings"
	"testing"
	"time"
)

func TestHelpers_FromEnvOrFlag(t *testing.T) {
	const key = "CFG_STR"
	tests := []struct {
		name   string
		env    string
		flag   string
		def    string
		expect string
	}{
		{
			name:   "env takes precedence over flag",
			env:    "  env-val  ",
			flag:   "flag-val",
			def:    "def",
			expect: "env-val",
		},
		{
			name:   "flag used when env empty",
			env:    "",
			flag:   "  flag-val  ",
			def:    "def",
			expect: "flag-val",
		},
		{
			name:   "default used when both empty",
			env:    "   ",
			flag:   "   ",
			def:    "def",
			expect: "def",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(key, tc.env)
			got := FromEnvOrFlag(key, tc.flag, tc.def)
			if got != tc.expect {
				t.Fatalf("got %q, want %q", got, tc.expect)
			}
		})
	}
}

func TestHelpers_FromEnvOrFlagBool(t *testing.T) {
	const key = "CFG_BOOL"
	tests := []struct {
		name   string
		env    string
		flag   bool
		def    bool
		expect bool
	}{
		{
			name:   "env true (various truthy) wins over flag false",
			env:    "TrUe",
			flag:   false,
			def:    false,
			expect: true,
		},
		{
			name:   "env false wins over flag true",
			env:    "0",
			flag:   true,
			def:    true,
			expect: false,
		},
		{
			name:   "env invalid -> falls back to def (but env has precedence path)",
			env:    "maybe",
			flag:   false,
			def:    true,
			expect: true,
		},
		{
			name:   "no env -> flag true used",
			env:    "",
			flag:   true,
			def:    false,
			expect: true,
		},
		{
			name:   "no env -> flag false -> default",
			env:    "",
			flag:   false,
			def:    true,
			expect: true,
		},
		{
			name:   "no env -> flag false -> default false",
			env:    "",
			flag:   false,
			def:    false,
			expect: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(key, tc.env)
			got := FromEnvOrFlagBool(key, tc.flag, tc.def)
			if got != tc.expect {
				t.Fatalf("got %v, want %v", got, tc.expect)
			}
		})
	}
}

func TestHelpers_FromEnvOrFlagInt(t *testing.T) {
	const key = "CFG_INT"
	tests := []struct {
		name    string
		env     string
		flag    int
		def     int
		lowest  int
		expect  int
		wantErr bool
	}{
		{name: "env wins over flag", env: "7", flag: 3, def: 5, lowest: 1, expect: 7},
		{name: "trims env before parse", env: "   12  ", flag: 2, def: 1, lowest: 1, expect: 12},
		{name: "flag used when env empty", env: "", flag: 4, def: 5, lowest: 1, expect: 4},
		{name: "default when both unset", env: "", flag: 0, def: 9, lowest: 1, expect: 9},
		{name: "env below lowest", env: "0", flag: 4, def: 5, lowest: 1, wantErr: true},
		{name: "env not a number", env: "abc", def: 5, lowest: 1, wantErr: true},
		{name: "flag below lowest", env: "", flag: -3, def: 9, lowest: 1, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(key, tc.env)
			got, err := FromEnvOrFlagInt(key, tc.flag, tc.def, tc.lowest)
			if tc.wantErr {
				if err == nil || !strings.Contains(err.Error(), key) {
					t.Fatalf("err=%v, want error naming %s", err, key)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.expect {
				t.Fatalf("got %d, want %d", got, tc.expect)
			}
		})
	}
}

func TestHelpers_FromEnvOrFlagDuration(t *testing.T) {
	const key = "CFG_DUR"
	tests := []struct {
		name    string
		env     string
		flag    string
		def     time.Duration
		expect  time.Duration
		wantErr bool
	}{
		{name: "env seconds wins over flag", env: "15", flag: "42", def: time.Minute, expect: 15 * time.Second},
		{name: "env duration string", env: "1m30s", def: time.Minute, expect: 90 * time.Second},
		{name: "fractional seconds", env: "0.5", def: time.Minute, expect: 500 * time.Millisecond},
		{name: "env with spaces", env: "   7   ", def: time.Minute, expect: 7 * time.Second},
		{name: "flag used when env empty", flag: "10", def: time.Minute, expect: 10 * time.Second},
		{name: "default when both unset", def: time.Minute, expect: time.Minute},
		{name: "garbage", env: "not-a-duration", def: time.Minute, wantErr: true},
		{name: "zero", env: "0", def: time.Minute, wantErr: true},
		{name: "negative flag", flag: "-5s", def: time.Minute, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(key, tc.env)
			got, err := FromEnvOrFlagDuration(key, tc.flag, tc.def)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.expect {
				t.Fatalf("got %v, want %v", got, tc.expect)
			}
		})
	}
}

func TestHelpers_SplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"env:prod", []string{"env:prod"}},
		{" env:prod , ,team:db,", []string{"env:prod", "team:db"}},
	}
	for _, tc := range tests {
		if got := SplitList(tc.in); !slices.Equal(got, tc.want) {
			t.Fatalf("SplitList(%q)=%v want %v", tc.in, got, tc.want)
		}
	}
}
