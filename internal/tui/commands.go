package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"chartpi/internal/dashboard"
	"chartpi/internal/domain"
)

const lookupTimeout = 10 * time.Second

const commandHelp = "add SYM [crypto|stock] · set SYM [crypto|stock] · find QUERY [crypto|stock] · keys KEY SECRET · refresh SECS · clock"

// command is one parsed line from the settings prompt.
type command struct {
	verb   string
	symbol string // add, set; query for find
	ac     domain.AssetClass
	args   []string
}

// commandDoneMsg reports the outcome of a settings command.
type commandDoneMsg struct {
	note    string
	err     error
	results []domain.SymbolInfo
}

// guessAssetClass treats USD-quoted pairs as crypto.
func guessAssetClass(symbol string) domain.AssetClass {
	for _, s := range quoteSuffixes {
		if strings.HasSuffix(symbol, s) && len(symbol) > len(s) {
			return domain.AssetCrypto
		}
	}
	return domain.AssetStock
}

var quoteSuffixes = []string{"USDT", "BUSD", "USD"}

func parseAssetClass(s string) (domain.AssetClass, error) {
	ac := domain.AssetClass(strings.ToLower(s))
	if !ac.Valid() {
		return "", fmt.Errorf("unknown asset class %q", s)
	}
	return ac, nil
}

func parseCommand(line string) (command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{}, errors.New("empty command")
	}
	cmd := command{verb: strings.ToLower(fields[0]), args: fields[1:]}

	switch cmd.verb {
	case "add", "set", "find":
		if len(cmd.args) == 0 || len(cmd.args) > 2 {
			return command{}, fmt.Errorf("usage: %s SYMBOL [crypto|stock]", cmd.verb)
		}
		cmd.symbol = strings.ToUpper(cmd.args[0])
		if cmd.verb == "find" {
			cmd.symbol = cmd.args[0]
		}
		if len(cmd.args) == 2 {
			ac, err := parseAssetClass(cmd.args[1])
			if err != nil {
				return command{}, err
			}
			cmd.ac = ac
		} else {
			cmd.ac = guessAssetClass(strings.ToUpper(cmd.args[0]))
		}
	case "keys":
		if len(cmd.args) != 0 && len(cmd.args) != 2 {
			return command{}, errors.New("usage: keys KEY SECRET (no arguments clears)")
		}
	case "refresh":
		if len(cmd.args) != 1 {
			return command{}, errors.New("usage: refresh SECONDS")
		}
		if n, err := strconv.Atoi(cmd.args[0]); err != nil || n <= 0 {
			return command{}, fmt.Errorf("invalid refresh interval %q", cmd.args[0])
		}
	case "clock", "help":
	default:
		return command{}, fmt.Errorf("unknown command %q", cmd.verb)
	}
	return cmd, nil
}

// run executes cmd against the store. Lookups happen off the UI goroutine.
func (m Model) run(cmd command) tea.Cmd {
	st := m.store
	lookup := m.lookup
	base := m.ctx
	selected, hasSelected := m.selectedChart()

	done := func(note string, err error) tea.Cmd {
		return func() tea.Msg { return commandDoneMsg{note: note, err: err} }
	}

	switch cmd.verb {
	case "help":
		return done(commandHelp, nil)

	case "clock":
		cfg := st.Config()
		cfg.ShowSessionClock = !cfg.ShowSessionClock
		if err := st.SetConfig(cfg); err != nil {
			return done("", err)
		}
		return done(fmt.Sprintf("session clock %s", onOff(cfg.ShowSessionClock)), nil)

	case "keys":
		creds := domain.Credentials{}
		if len(cmd.args) == 2 {
			creds = domain.Credentials{APIKey: cmd.args[0], APISecret: cmd.args[1]}
		}
		st.SetFallbackCredentials(creds)
		if creds.Present() {
			return done("fallback credentials saved", nil)
		}
		return done("fallback credentials cleared", nil)

	case "refresh":
		if !hasSelected {
			return done("", errors.New("no chart selected"))
		}
		selected.RefreshIntervalSeconds, _ = strconv.Atoi(cmd.args[0])
		return done(fmt.Sprintf("%s refreshes every %ds", selected.Symbol, selected.RefreshIntervalSeconds),
			st.UpdateChart(selected))

	case "find":
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(base, lookupTimeout)
			defer cancel()
			res, err := lookup.Search(ctx, cmd.symbol, cmd.ac)
			if err != nil {
				return commandDoneMsg{err: err}
			}
			return commandDoneMsg{note: fmt.Sprintf("%d %s results", len(res), cmd.ac), results: res}
		}

	case "add", "set":
		if cmd.verb == "set" && !hasSelected {
			return done("", errors.New("no chart selected"))
		}
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(base, lookupTimeout)
			defer cancel()
			if _, ok, err := lookup.Validate(ctx, cmd.symbol, cmd.ac); err != nil {
				return commandDoneMsg{err: err}
			} else if !ok {
				return commandDoneMsg{err: fmt.Errorf("%s is not a known %s symbol", cmd.symbol, cmd.ac)}
			}
			if cmd.verb == "add" {
				c, err := st.AddChart(domain.ChartConfig{Symbol: cmd.symbol, AssetClass: cmd.ac})
				if err != nil {
					return commandDoneMsg{err: err}
				}
				return commandDoneMsg{note: "added " + dashboard.DisplaySymbol(c.Symbol, c.AssetClass)}
			}
			selected.Symbol = cmd.symbol
			selected.AssetClass = cmd.ac
			if err := st.UpdateChart(selected); err != nil {
				return commandDoneMsg{err: err}
			}
			return commandDoneMsg{note: "chart now shows " + cmd.symbol}
		}
	}
	return nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
