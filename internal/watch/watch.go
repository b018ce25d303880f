// Package watch implements the fleetsim watch client.
// It periodically fetches /services from a running server and prints the
// fleet as a table. Each poll counts as activity, so a running watch keeps
// the server's simulator awake.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/vesaa/fleetsim/internal/models"
)

// Options configures a watch run.
type Options struct {
	BaseURL  string // e.g. "http://127.0.0.1:8080"
	Interval time.Duration
	Timeout  time.Duration
	Out      io.Writer
	Logger   *slog.Logger
}

// Run polls until ctx is done. Fetch errors are logged and the loop continues.
func Run(ctx context.Context, opts Options) error {
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	client := &http.Client{Timeout: opts.Timeout}
	url := strings.TrimRight(opts.BaseURL, "/") + "/services"

	poll := func() {
		list, err := Fetch(ctx, client, url)
		if err != nil {
			opts.Logger.Warn("fetch failed", "url", url, "error", err)
			return
		}
		if err := Render(opts.Out, list, time.Now()); err != nil {
			opts.Logger.Warn("render failed", "error", err)
		}
	}

	poll()
	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			poll()
		}
	}
}

// Fetch GETs url and decodes the JSON array of services.
func Fetch(ctx context.Context, client *http.Client, url string) (models.ServiceCollection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var body struct {
			Error  string `json:"error"`
			Detail string `json:"detail"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return nil, fmt.Errorf("server returned %d: %s %s", resp.StatusCode, body.Error, body.Detail)
	}

	var list models.ServiceCollection
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decoding services: %w", err)
	}
	return list, nil
}

// Render writes list as an aligned table stamped with at.
func Render(w io.Writer, list models.ServiceCollection, at time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "── %s  (%d services)\n", at.Format(time.TimeOnly), len(list))
	fmt.Fprintln(tw, "NAME\tSTATUS\tCPU%\tMEM MB\tRESP ms\tERRORS")
	for _, s := range list {
		name := s.Name
		if name == "" {
			name = string(s.ID)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\n", name, s.Status, s.CPU, s.Memory, s.ResponseTime, s.Errors)
	}
	return tw.Flush()
}
