// boqtui is a terminal client for the boqops server. It browses BOQs
// with live search and filters, edits grids in place and exports
// workbooks, authenticating with an API key.
package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"boqops/client"
)

var program *tea.Program

// loginRequiredMsg is delivered when the backend rejects our key.
type loginRequiredMsg struct{}

// teaNavigator routes the client's forced-logout signal into the update
// loop instead of navigating a browser.
type teaNavigator struct{}

func (teaNavigator) RedirectToLogin() {
	if program != nil {
		program.Send(loginRequiredMsg{})
	}
}

func main() {
	server := flag.String("server", "http://localhost:9000", "boqops server base URL")
	key := flag.String("key", "", "API key (or BOQOPS_API_KEY)")
	logPath := flag.String("log", "", "debug log file")
	flag.Parse()

	if *key == "" {
		*key = os.Getenv("BOQOPS_API_KEY")
	}
	if *key == "" {
		fmt.Fprintln(os.Stderr, "an API key is required: pass -key or set BOQOPS_API_KEY")
		os.Exit(1)
	}

	log := zerolog.Nop()
	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintln(os.Stderr, "open log file:", err)
			os.Exit(1)
		}
		defer f.Close()
		log = zerolog.New(f).With().Timestamp().Logger()
	}

	tokens := &client.MemoryTokenStore{}
	tokens.Set(*key)
	api := client.New(*server, tokens, teaNavigator{})
	api.Log = log

	m := initialModel(api, log)
	program = tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "boqtui:", err)
		os.Exit(1)
	}
}
