package types

import (
	"fmt"
	"strings"
)

// AgentType selects the flavour of app the model is asked to build.
// The set is closed: every switch over AgentType in this module is exhaustive.
type AgentType int

const (
	AgentApp AgentType = iota
	AgentUtility
	AgentWidget
	AgentGame
	AgentInfo
)

// AllAgents lists every agent type in display order.
var AllAgents = []AgentType{AgentApp, AgentUtility, AgentWidget, AgentGame, AgentInfo}

// ID returns the wire identifier used by the browser shell and persisted selections.
func (a AgentType) ID() string {
	switch a {
	case AgentApp:
		return "app-generator"
	case AgentUtility:
		return "utility-agent"
	case AgentWidget:
		return "widget-agent"
	case AgentGame:
		return "game-agent"
	case AgentInfo:
		return "info-agent"
	default:
		return fmt.Sprintf("agent(%d)", int(a))
	}
}

// String returns the short name (app, utility, widget, game, info).
func (a AgentType) String() string {
	switch a {
	case AgentApp:
		return "app"
	case AgentUtility:
		return "utility"
	case AgentWidget:
		return "widget"
	case AgentGame:
		return "game"
	case AgentInfo:
		return "info"
	default:
		return fmt.Sprintf("agent(%d)", int(a))
	}
}

// Label is the human readable agent name.
func (a AgentType) Label() string {
	switch a {
	case AgentApp:
		return "App Generator"
	case AgentUtility:
		return "Utility Agent"
	case AgentWidget:
		return "Widget Agent"
	case AgentGame:
		return "Game Agent"
	case AgentInfo:
		return "Info Agent"
	default:
		return a.String()
	}
}

// Valid reports whether a is one of the declared agent types.
func (a AgentType) Valid() bool {
	return a >= AgentApp && a <= AgentInfo
}

// ParseAgentType accepts either the wire id ("game-agent") or the short name ("game").
func ParseAgentType(s string) (AgentType, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for _, a := range AllAgents {
		if key == a.ID() || key == a.String() {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown agent type %q (valid: app, utility, widget, game, info)", s)
}

// MarshalText implements encoding.TextMarshaler so agent types travel as their wire id.
func (a AgentType) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("invalid agent type %d", int(a))
	}
	return []byte(a.ID()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *AgentType) UnmarshalText(text []byte) error {
	parsed, err := ParseAgentType(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
