package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/naveenspark/nftvault/internal/identity"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3ecce4")).
			Bold(true)
	cmdStyle  = lipgloss.NewStyle().Bold(true)
	descStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

func printHelp(w io.Writer) {
	commands := []struct{ cmd, desc string }{
		{"nftvault", "Browse your inventory (interactive TUI)"},
		{"nftvault withdraw <ref>", "Withdraw one item by link or id"},
		{"nftvault whoami", "Show which user id was resolved"},
		{"nftvault --version", "Show version"},
		{"nftvault help", "You are here"},
	}
	env := []struct{ key, desc string }{
		{"--launch-url", "Launch link carrying ?user_id="},
		{"NFTVAULT_USER_ID", "User id from the launcher"},
		{"NFTVAULT_QUERY_ID", "Launch query id (<user id>_...)"},
		{"NFTVAULT_INIT_DATA", "Raw launch init data"},
		{"NFTVAULT_API_URL", "Backend base URL"},
	}

	fmt.Fprintf(w, "\n  %s\n\n  Commands:\n", titleStyle.Render("N F T V A U L T"))
	for _, c := range commands {
		fmt.Fprintf(w, "    %s  %s\n", cmdStyle.Render(fmt.Sprintf("%-24s", c.cmd)), descStyle.Render(c.desc))
	}
	fmt.Fprintf(w, "\n  Launch context:\n")
	for _, e := range env {
		fmt.Fprintf(w, "    %s  %s\n", cmdStyle.Render(fmt.Sprintf("%-24s", e.key)), descStyle.Render(e.desc))
	}
	fmt.Fprintln(w)
}

func printNoIdentity(w io.Writer) {
	hint := descStyle.Render("Pass --launch-url or set NFTVAULT_USER_ID. See: nftvault help")
	fmt.Fprintf(w, "\n%s\n\n%s\n%s\n\n", titleStyle.Render("NFTVAULT"), identity.ErrNoIdentity.Error(), hint)
}
