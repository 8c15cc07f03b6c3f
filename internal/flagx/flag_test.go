package flagx

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	allowed := []string{"-c", "-config", "--config"}

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{name: "separate value", args: []string{"-c", "conf.json", "-a", ":8080"}, want: []string{"-c", "conf.json"}},
		{name: "equals form", args: []string{"--config=alt.json", "-a", ":8080"}, want: []string{"--config=alt.json"}},
		{name: "order preserved", args: []string{"--config=a.json", "-c", "b.json"}, want: []string{"--config=a.json", "-c", "b.json"}},
		{name: "unknown ignored", args: []string{"-x", "1", "--y=2", "positional"}, want: []string{}},
		{name: "dangling flag", args: []string{"-c"}, want: []string{"-c"}},
		{name: "next is a flag", args: []string{"-c", "-t"}, want: []string{"-c"}},
		{name: "value looks like flag in equals form", args: []string{"-config=--odd.json"}, want: []string{"-config=--odd.json"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, allowed))
		})
	}
}

func TestJsonConfigFlags(t *testing.T) {
	orig := os.Args
	t.Cleanup(func() { os.Args = orig })

	t.Run("flag wins over env", func(t *testing.T) {
		t.Setenv(ConfigEnvVar, "env.json")
		os.Args = []string{"bin", "-a", ":1", "-config", "flag.json"}
		assert.Equal(t, "flag.json", JsonConfigFlags())
	})

	t.Run("short flag", func(t *testing.T) {
		t.Setenv(ConfigEnvVar, "")
		os.Args = []string{"bin", "-c", "short.json"}
		assert.Equal(t, "short.json", JsonConfigFlags())
	})

	t.Run("env fallback", func(t *testing.T) {
		t.Setenv(ConfigEnvVar, "env.json")
		os.Args = []string{"bin"}
		assert.Equal(t, "env.json", JsonConfigFlags())
	})

	t.Run("nothing", func(t *testing.T) {
		t.Setenv(ConfigEnvVar, "")
		os.Args = []string{"bin"}
		assert.Empty(t, JsonConfigFlags())
	})
}
