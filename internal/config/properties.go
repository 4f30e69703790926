package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Errors reported while extracting the console endpoint from a parsed
// properties file.
var (
	ErrMissingRconPassword = errors.New("server.properties does not set rcon.password")
	ErrRconDisabled        = errors.New("server.properties has enable-rcon=false")
)

// MalformedLineError reports a properties line without a key=value shape.
type MalformedLineError struct {
	Line int
	Text string
}

func (e *MalformedLineError) Error() string {
	return fmt.Sprintf("malformed properties line %d: %q", e.Line, e.Text)
}

// Properties is a parsed Minecraft server.properties file. Values are
// kept as raw strings; typed accessors interpret the handful of keys
// this tool cares about.
type Properties struct {
	values map[string]string
}

// RconEndpoint is the remote console configuration a server advertises
// in its properties file.
type RconEndpoint struct {
	Port     int
	Password string
}

// LoadProperties reads and parses a server.properties file.
func LoadProperties(path string) (*Properties, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open properties file %s: %w", path, err)
	}
	defer f.Close()

	p := &Properties{values: make(map[string]string)}

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			return nil, &MalformedLineError{Line: lineNo, Text: line}
		}
		p.values[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read properties file %s: %w", path, err)
	}

	return p, nil
}

// Get returns the raw value for a key and whether it was present.
func (p *Properties) Get(key string) (string, bool) {
	v, ok := p.values[key]
	return v, ok
}

// LevelName returns the world name, defaulting to "world" as the
// server itself does when the key is absent.
func (p *Properties) LevelName() string {
	if name, ok := p.values["level-name"]; ok && name != "" {
		return name
	}
	return "world"
}

// RconEndpoint extracts the console port and password. The port
// defaults to 25575 when unset, again matching the server. A missing
// password is an error since the server refuses console connections
// without one.
func (p *Properties) RconEndpoint() (RconEndpoint, error) {
	if enabled, ok := p.values["enable-rcon"]; ok && enabled != "true" {
		return RconEndpoint{}, ErrRconDisabled
	}

	port := DefaultRconPort
	if raw, ok := p.values["rcon.port"]; ok {
		parsed, err := strconv.ParseUint(raw, 10, 16)
		if err != nil || parsed == 0 {
			return RconEndpoint{}, fmt.Errorf("invalid rcon.port %q in server.properties", raw)
		}
		port = int(parsed)
	}

	password, ok := p.values["rcon.password"]
	if !ok || password == "" {
		return RconEndpoint{}, ErrMissingRconPassword
	}

	return RconEndpoint{Port: port, Password: password}, nil
}
