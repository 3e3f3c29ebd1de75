// trendwatchctl is an interactive console for a running trendwatchd.
//
// With arguments it runs a single command and exits; otherwise it
// starts a prompt loop (or reads commands from stdin when piped).
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/c-bata/go-prompt"
	"golang.org/x/term"

	"github.com/xtxerr/trendwatch/internal/format"
	"github.com/xtxerr/trendwatch/internal/metrics/trend"
	"github.com/xtxerr/trendwatch/internal/metrics/types"
)

func main() {
	addr := flag.String("addr", "http://127.0.0.1:8480", "trendwatchd base URL")
	flag.Parse()

	c := &console{
		base:   strings.TrimRight(*addr, "/"),
		client: &http.Client{Timeout: 10 * time.Second},
		out:    os.Stdout,
	}

	if flag.NArg() > 0 {
		c.execute(strings.Join(flag.Args(), " "))
		return
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() && !c.done {
			c.execute(scanner.Text())
		}
		return
	}

	fmt.Println("trendwatchctl - type 'help' for commands, 'exit' to quit")
	p := prompt.New(
		c.execute,
		completer,
		prompt.OptionTitle("trendwatchctl"),
		prompt.OptionPrefix("trendwatch> "),
		// Run returns normally on exit so go-prompt restores the
		// terminal state.
		prompt.OptionSetExitCheckerOnInput(func(in string, breakline bool) bool {
			return c.done
		}),
	)
	p.Run()
}

var commands = []prompt.Suggest{
	{Text: "history", Description: "history <cluster> <pod> <metric> [labels]"},
	{Text: "avg", Description: "avg <cluster> <pod> <metric> <window>"},
	{Text: "trend", Description: "trend <cluster> <pod> <metric> <window>"},
	{Text: "summary", Description: "summary <cluster> <pod> <metric> <window>"},
	{Text: "windows", Description: "list the available windows"},
	{Text: "stats", Description: "daemon statistics"},
	{Text: "help", Description: "show command help"},
	{Text: "exit", Description: "quit the console"},
}

func completer(d prompt.Document) []prompt.Suggest {
	if strings.Contains(d.TextBeforeCursor(), " ") {
		return nil
	}
	return prompt.FilterHasPrefix(commands, d.GetWordBeforeCursor(), true)
}

type console struct {
	base   string
	client *http.Client
	out    io.Writer
	done   bool
}

func (c *console) execute(line string) {
	args := strings.Fields(line)
	if len(args) == 0 {
		return
	}

	switch args[0] {
	case "history":
		c.history(args[1:])
	case "avg":
		c.average(args[1:])
	case "trend":
		c.trend(args[1:])
	case "summary":
		c.summary(args[1:])
	case "windows":
		c.windows()
	case "stats":
		c.stats()
	case "help":
		c.help()
	case "exit", "quit":
		c.done = true
	default:
		fmt.Fprintf(c.out, "unknown command %q, try 'help'\n", args[0])
	}
}

func (c *console) help() {
	for _, s := range commands {
		fmt.Fprintf(c.out, "  %-8s %s\n", s.Text, s.Description)
	}
}

// entityQuery builds the cluster/pod/metric query string shared by all
// series commands.
func entityQuery(args []string) (url.Values, bool) {
	if len(args) < 3 {
		return nil, false
	}
	q := url.Values{}
	q.Set("cluster", args[0])
	q.Set("pod", args[1])
	q.Set("metric", args[2])
	return q, true
}

func (c *console) get(path string, q url.Values, out interface{}) error {
	resp, err := c.client.Get(c.base + path + "?" + q.Encode())
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s: %s", resp.Status, apiErr.Error)
		}
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *console) history(args []string) {
	q, ok := entityQuery(args)
	if !ok {
		fmt.Fprintln(c.out, "usage: history <cluster> <pod> <metric> [labels]")
		return
	}
	if len(args) > 3 {
		q.Set("labels", args[3])
	}

	var series types.Series
	if err := c.get("/api/v1/history", q, &series); err != nil {
		fmt.Fprintln(c.out, "error:", err)
		return
	}
	if len(series) == 0 {
		fmt.Fprintln(c.out, "no points")
		return
	}
	for _, p := range series {
		ts := time.UnixMilli(p.TimestampMs).UTC().Format(time.RFC3339)
		fmt.Fprintf(c.out, "  %s  %s\n", ts, format.Number(p.Value))
	}
	fmt.Fprintf(c.out, "%d points\n", len(series))
}

func (c *console) average(args []string) {
	q, ok := entityQuery(args)
	if !ok || len(args) < 4 {
		fmt.Fprintln(c.out, "usage: avg <cluster> <pod> <metric> <window>")
		return
	}
	q.Set("window", args[3])

	var body struct {
		Average float64 `json:"average"`
	}
	if err := c.get("/api/v1/average", q, &body); err != nil {
		fmt.Fprintln(c.out, "error:", err)
		return
	}
	fmt.Fprintf(c.out, "average over %s: %s\n", args[3], format.Number(body.Average))
}

func (c *console) trend(args []string) {
	q, ok := entityQuery(args)
	if !ok || len(args) < 4 {
		fmt.Fprintln(c.out, "usage: trend <cluster> <pod> <metric> <window>")
		return
	}
	q.Set("window", args[3])

	var t trend.Trend
	if err := c.get("/api/v1/trend", q, &t); err != nil {
		fmt.Fprintln(c.out, "error:", err)
		return
	}
	direction := "flat or falling"
	if t.IsTrending {
		direction = "rising"
	}
	fmt.Fprintf(c.out, "%s (%s)\n", t.Message, direction)
}

func (c *console) summary(args []string) {
	q, ok := entityQuery(args)
	if !ok || len(args) < 4 {
		fmt.Fprintln(c.out, "usage: summary <cluster> <pod> <metric> <window>")
		return
	}
	q.Set("window", args[3])

	var s trend.Summary
	if err := c.get("/api/v1/summary", q, &s); err != nil {
		fmt.Fprintln(c.out, "error:", err)
		return
	}
	fmt.Fprintf(c.out, "count=%d sum=%s min=%s max=%s avg=%s\n",
		s.Count, format.Number(s.Sum), format.Number(s.Min),
		format.Number(s.Max), format.Number(s.Avg))
	for _, p := range []struct {
		name  string
		value *float64
	}{{"p50", s.P50}, {"p90", s.P90}, {"p95", s.P95}, {"p99", s.P99}} {
		if p.value != nil {
			fmt.Fprintf(c.out, "  %s=%s\n", p.name, format.Number(*p.value))
		}
	}
}

func (c *console) windows() {
	var windows []types.Window
	if err := c.get("/api/v1/windows", url.Values{}, &windows); err != nil {
		fmt.Fprintln(c.out, "error:", err)
		return
	}
	for _, w := range windows {
		fmt.Fprintf(c.out, "  %-4s %ds\n", w.Label, w.Seconds)
	}
}

func (c *console) stats() {
	var stats map[string]interface{}
	if err := c.get("/api/v1/stats", url.Values{}, &stats); err != nil {
		fmt.Fprintln(c.out, "error:", err)
		return
	}
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	enc.Encode(stats)
}
