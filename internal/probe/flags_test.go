package probe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/tellix/internal/errors"
)

func TestParseParams(t *testing.T) {
	tests := []struct {
		name    string
		params  string
		want    []string
		wantErr bool
	}{
		{"empty", "", []string{}, false},
		{"blank", "   ", []string{}, false},
		{"simple flags", "-status-code -title", []string{"-status-code", "-title"}, false},
		{"flag with value", "-mc 200,302 -threads 10", []string{"-mc", "200,302", "-threads", "10"}, false},
		{"quoted value", `-H "User-Agent: tellix/1.0"`, []string{"-H", "User-Agent: tellix/1.0"}, false},
		{"single quotes", `-path '/admin panel'`, []string{"-path", "/admin panel"}, false},
		{"newlines separate tokens", "-sc\n-title", []string{"-sc", "-title"}, false},

		{"semicolon", "-sc; rm -rf /", nil, true},
		{"pipe", "-sc | tee out", nil, true},
		{"redirect", "-sc > out", nil, true},
		{"background", "-sc &", nil, true},
		{"variable", "-H $HOME", nil, true},
		{"backtick", "-H `id`", nil, true},
		{"unterminated quote", `-H "open`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseParams(tt.params)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, errors.CodeValidation), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		denied  []string
		wantErr bool
	}{
		{"no args", nil, nil, false},
		{"preset flags", PresetFlags(LevelFull), nil, false},
		{"values are not flags", []string{"-mc", "200", "-path", "/o"}, nil, false},

		{"list flag", []string{"-l", "/etc/hosts"}, nil, true},
		{"long list flag", []string{"-list", "x"}, nil, true},
		{"output flag", []string{"-o", "/tmp/x"}, nil, true},
		{"double dash output", []string{"--output", "/tmp/x"}, nil, true},
		{"output with equals", []string{"-o=/tmp/x"}, nil, true},
		{"store response dir", []string{"-srd", "/tmp"}, nil, true},
		{"store response dir long", []string{"-store-response-dir", "/tmp"}, nil, true},
		{"config flag", []string{"-config", "/etc/httpx.yaml"}, nil, true},
		{"case insensitive", []string{"-OUTPUT", "x"}, nil, true},
		{"configured deny", []string{"-proxy", "http://127.0.0.1:8080"}, []string{"-proxy"}, true},
		{"configured deny with dashes", []string{"--proxy"}, []string{"-proxy"}, true},
		{"metacharacter in value", []string{"-H", "a;b"}, nil, true},
		{"nul byte", []string{"-H", "a\x00b"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateArgs(tt.args, tt.denied)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, errors.CodeValidation), "got %v", err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestHasJSONFlag(t *testing.T) {
	tests := []struct {
		args []string
		want bool
	}{
		{nil, false},
		{[]string{"-status-code"}, false},
		{[]string{"-j"}, true},
		{[]string{"-sc", "-json"}, true},
		{[]string{"--json"}, true},
		// substrings must not count
		{[]string{"-jarm"}, false},
		{[]string{"-json-output"}, false},
		{[]string{"-H", "X-j: 1"}, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, HasJSONFlag(tt.args), "args %v", tt.args)
	}
}

func TestBuildArgs(t *testing.T) {
	t.Run("appends json flag", func(t *testing.T) {
		got := BuildArgs([]string{"-status-code"}, "/ws/targets.txt", "/ws/results.jsonl")
		assert.Equal(t, []string{"-status-code", "-l", "/ws/targets.txt", "-o", "/ws/results.jsonl", "-json"}, got)
	})

	t.Run("does not duplicate json flag", func(t *testing.T) {
		got := BuildArgs([]string{"-j", "-title"}, "t", "r")
		assert.Equal(t, []string{"-j", "-title", "-l", "t", "-o", "r"}, got)
	})

	t.Run("jarm is not json", func(t *testing.T) {
		got := BuildArgs([]string{"-jarm"}, "t", "r")
		assert.Equal(t, "-json", got[len(got)-1])
	})

	t.Run("does not alias caller slice", func(t *testing.T) {
		args := make([]string, 1, 10)
		args[0] = "-sc"
		_ = BuildArgs(args, "t", "r")
		assert.Equal(t, []string{"-sc"}, args)
		assert.Equal(t, "", args[:2][1])
	})
}

func TestCommandLine(t *testing.T) {
	assert.Equal(t, "httpx", CommandLine("httpx", nil))
	assert.Equal(t, "httpx -status-code -title", CommandLine("httpx", []string{"-status-code", "-title"}))
}
