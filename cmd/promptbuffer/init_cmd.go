package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// bashHook sets PS1 before every prompt. promptvars is turned off so text
// from plugins (branch names, commit summaries) is never expanded by bash.
const bashHook = `_promptbuffer_prompt() {
  PS1="$(command %[1]s render --shell bash "$PWD")"
}
shopt -u promptvars
if [[ ";${PROMPT_COMMAND:-};" != *";_promptbuffer_prompt;"* ]]; then
  PROMPT_COMMAND="_promptbuffer_prompt${PROMPT_COMMAND:+;$PROMPT_COMMAND}"
fi
`

const zshHook = `_promptbuffer_precmd() {
  PROMPT="$(command %[1]s render --shell zsh "$PWD")"
}
autoload -Uz add-zsh-hook
add-zsh-hook precmd _promptbuffer_precmd
`

func newInitCmd() *cobra.Command {
	var bin string
	cmd := &cobra.Command{
		Use:       "init bash|zsh",
		Short:     "Print the shell hook; eval it from your shell rc",
		Example:   `  eval "$(promptbuffer init zsh)"`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"bash", "zsh"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if bin == "" {
				bin = executable()
			}
			script, err := shellHook(args[0], bin)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), script)
			return nil
		},
	}
	cmd.Flags().StringVar(&bin, "bin", "", "binary the hook calls (default: this executable)")
	return cmd
}

func shellHook(shell, bin string) (string, error) {
	switch shell {
	case "bash":
		return fmt.Sprintf(bashHook, shellQuote(bin)), nil
	case "zsh":
		return fmt.Sprintf(zshHook, shellQuote(bin)), nil
	default:
		return "", fmt.Errorf("unsupported shell %q (want bash or zsh)", shell)
	}
}

func executable() string {
	path, err := os.Executable()
	if err != nil {
		return "promptbuffer"
	}
	return path
}

// shellQuote single-quotes s unless it is made of safe characters only.
func shellQuote(s string) string {
	safe := s != "" && strings.IndexFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("/._-+", r))
	}) < 0
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func hostname() string {
	h, _ := os.Hostname()
	return h
}
