package flagx

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name         string
		args         []string
		allowedFlags []string
		want         []string
	}{
		{
			name:         "short flag with separate value",
			args:         []string{"-c", "relay.yaml", "-t", "token"},
			allowedFlags: []string{"-c", "--config"},
			want:         []string{"-c", "relay.yaml"},
		},
		{
			name:         "long flag with equals",
			args:         []string{"--config=alt.json", "-t", "token"},
			allowedFlags: []string{"-c", "--config"},
			want:         []string{"--config=alt.json"},
		},
		{
			name:         "value that looks like a flag is not consumed",
			args:         []string{"-c", "-t", "token"},
			allowedFlags: []string{"-c"},
			want:         []string{"-c"},
		},
		{
			name:         "test binary flags are dropped",
			args:         []string{"-test.v", "-test.run=TestX", "-b", "5"},
			allowedFlags: []string{"-b"},
			want:         []string{"-b", "5"},
		},
		{
			name:         "nothing allowed",
			args:         []string{"-x", "1"},
			allowedFlags: nil,
			want:         []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, tt.allowedFlags))
		})
	}
}

func TestConfigPath(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	t.Run("short flag", func(t *testing.T) {
		os.Args = []string{"relay", "-c", "a.json"}
		assert.Equal(t, "a.json", ConfigPath())
	})

	t.Run("long flag wins over env", func(t *testing.T) {
		t.Setenv(ConfigEnv, "env.yaml")
		os.Args = []string{"relay", "-config=b.yaml"}
		assert.Equal(t, "b.yaml", ConfigPath())
	})

	t.Run("env fallback", func(t *testing.T) {
		t.Setenv(ConfigEnv, "env.yaml")
		os.Args = []string{"relay"}
		assert.Equal(t, "env.yaml", ConfigPath())
	})

	t.Run("none", func(t *testing.T) {
		t.Setenv(ConfigEnv, "")
		os.Args = []string{"relay", "-t", "x"}
		assert.Equal(t, "", ConfigPath())
	})
}
