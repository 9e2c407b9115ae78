package cli

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDefaultsToHelp(t *testing.T) {
	parsed, err := Parse(nil)
	require.NoError(t, err)
	require.True(t, parsed.ShowHelp)
	require.Equal(t, CommandHelp, parsed.Command)
}

func TestParseCommandWithConfig(t *testing.T) {
	parsed, err := Parse([]string{"--config", "/tmp/hark.jsonc", "serve"})
	require.NoError(t, err)
	require.Equal(t, CommandServe, parsed.Command)
	require.Equal(t, "/tmp/hark.jsonc", parsed.ConfigPath)
	require.False(t, parsed.ShowHelp)
}

func TestParsePushJoinsText(t *testing.T) {
	parsed, err := Parse([]string{"push", "turn", "on", " the lights "})
	require.NoError(t, err)
	require.Equal(t, CommandPush, parsed.Command)
	require.Equal(t, "turn on  the lights", parsed.Text)

	parsed, err = Parse([]string{"push", "--config", "x"})
	require.NoError(t, err)
	require.Equal(t, "--config x", parsed.Text)
}

func TestParseArgMatrix(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantErr  string
		wantCmd  Command
		wantHelp bool
	}{
		{name: "help short flag", args: []string{"-h"}, wantCmd: CommandHelp, wantHelp: true},
		{name: "help long flag", args: []string{"--help"}, wantCmd: CommandHelp, wantHelp: true},
		{name: "version flag", args: []string{"--version"}, wantCmd: CommandVersion},
		{name: "config after command", args: []string{"status", "--config", "/tmp/cfg"}, wantErr: "unexpected arguments after command"},
		{name: "missing config path", args: []string{"--config"}, wantErr: "requires a path"},
		{name: "unknown flag", args: []string{"--bogus"}, wantErr: "unknown flag"},
		{name: "unknown command", args: []string{"toggle"}, wantErr: "unknown command"},
		{name: "extra args after command", args: []string{"drain", "extra"}, wantErr: "unexpected arguments"},
		{name: "push without text", args: []string{"push", "  "}, wantErr: "push requires text"},
		{name: "pause", args: []string{"pause"}, wantCmd: CommandPause},
		{name: "resume", args: []string{"resume"}, wantCmd: CommandResume},
		{name: "health", args: []string{"health"}, wantCmd: CommandHealth},
		{name: "help command", args: []string{"help"}, wantCmd: CommandHelp, wantHelp: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			parsed, err := Parse(tc.args)
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.wantCmd, parsed.Command)
			require.Equal(t, tc.wantHelp, parsed.ShowHelp)
		})
	}
}

func TestHelpTextListsCommands(t *testing.T) {
	help := HelpText("hark")
	for cmd := range validCommands {
		require.Contains(t, help, "  "+string(cmd))
	}
	require.Contains(t, help, "$XDG_CONFIG_HOME/hark/config.jsonc")
}
