package rcon

import (
	"context"
	"fmt"
	"strings"
)

// Client is the typed command surface over the manager. All methods
// are safe to call concurrently; the manager serializes them against
// the single connection.
type Client struct {
	manager *Manager
}

// NewClient creates a client with its own connection manager.
func NewClient(addr, password string, opts Options) *Client {
	return &Client{manager: NewManager(addr, password, opts)}
}

// Close shuts down the underlying manager.
func (c *Client) Close() {
	c.manager.Close()
}

// TickStats holds the five timing figures the server reports for
// "tick query". Values keep their "ms" suffix as reported.
type TickStats struct {
	Average string `json:"average"`
	Target  string `json:"target"`
	P50     string `json:"p50"`
	P95     string `json:"p95"`
	P99     string `json:"p99"`
}

// TickStatsError reports a tick-query response that did not contain
// exactly five timing tokens. Raw carries the unparsed server text for
// diagnostics.
type TickStatsError struct {
	Raw string
}

func (e *TickStatsError) Error() string {
	return fmt.Sprintf("failed to parse server tick stats: %s", e.Raw)
}

// SaveAll flushes all world data to disk. The text response is
// discarded.
func (c *Client) SaveAll(ctx context.Context) error {
	_, err := c.manager.Run(ctx, "save-all")
	return classify(err)
}

// Stop shuts the server process down and closes the connection, which
// the exiting process would drop anyway.
func (c *Client) Stop(ctx context.Context) error {
	_, err := c.manager.RunAndDisconnect(ctx, "stop")
	return classify(err)
}

// ListPlayers returns the names of currently connected players.
func (c *Client) ListPlayers(ctx context.Context) ([]string, error) {
	body, err := c.manager.Run(ctx, "list")
	if err != nil {
		return nil, classify(err)
	}
	return parsePlayerList(body), nil
}

// QueryTickStats returns the server's tick timing figures.
func (c *Client) QueryTickStats(ctx context.Context) (TickStats, error) {
	body, err := c.manager.Run(ctx, "tick query")
	if err != nil {
		return TickStats{}, classify(err)
	}
	return parseTickStats(body)
}

// Command runs an arbitrary command string and returns the raw text
// response.
func (c *Client) Command(ctx context.Context, command string) (string, error) {
	body, err := c.manager.Run(ctx, command)
	return body, classify(err)
}

// parsePlayerList splits the canonical "list" response,
// "<prefix>: <name>, <name>, ...", into names. A header with nothing
// after the separator, or no separator at all, yields an empty list.
func parsePlayerList(body string) []string {
	_, players, found := strings.Cut(body, ": ")
	if !found || players == "" {
		return []string{}
	}
	return strings.Split(players, ", ")
}

// parseTickStats extracts the five ms-suffixed tokens from the
// free-text "tick query" response, in the server's fixed order
// average/target/p50/p95/p99. Example server output:
//
//	Target tick rate: 20.0 per second.
//	Average time per tick: 13.2ms (Target: 50.0ms)
//	Percentiles: P50: 13.0ms P95: 16.0ms P99: 18.6ms, sample: 100
func parseTickStats(body string) (TickStats, error) {
	stripped := strings.NewReplacer(":", " ", ",", " ", "(", " ", ")", " ").Replace(body)

	var timings []string
	for _, word := range strings.Fields(stripped) {
		if strings.HasSuffix(word, "ms") {
			timings = append(timings, word)
		}
	}

	if len(timings) != 5 {
		return TickStats{}, &TickStatsError{Raw: body}
	}

	return TickStats{
		Average: timings[0],
		Target:  timings[1],
		P50:     timings[2],
		P95:     timings[3],
		P99:     timings[4],
	}, nil
}
