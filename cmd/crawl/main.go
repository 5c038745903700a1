// Command crawl runs a recursive same-host link crawl over seed URLs and
// writes one JSON record per fetched page.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dataservice-go/dataservice/pkg/client"
	"github.com/dataservice-go/dataservice/pkg/logging"
	"github.com/dataservice-go/dataservice/pkg/model"
	"github.com/dataservice-go/dataservice/pkg/pipeline"
	"github.com/dataservice-go/dataservice/pkg/worker"
)

// pageRecord is the output record for one fetched page.
type pageRecord struct {
	URL       string `json:"url"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Links     int    `json:"links"`
	Depth     int    `json:"depth"`
	FetchedAt string `json:"fetched_at"`
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "crawl [flags] seed-url...",
		Short: "Recursive same-host link crawler",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrawl(cmd.Context(), v, args)
		},
	}

	flags := cmd.Flags()
	flags.Int("max-workers", 5, "degree of concurrent fetches")
	flags.Bool("dedup", true, "suppress duplicate requests")
	flags.StringSlice("dedup-keys", nil, "fingerprint fields (url, method, params, form_data, json_data)")
	flags.Int("max-depth", 2, "how many link hops to follow from the seeds")
	flags.Duration("timeout", 30*time.Second, "per-fetch timeout")
	flags.Duration("interval", 0, "minimum spacing between fetches")
	flags.String("user-agent", "dataservice-crawl/1.0", "User-Agent header")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.Bool("pretty", false, "human-readable log output")
	flags.String("config", "", "config file (yaml)")

	cobra.CheckErr(v.BindPFlags(flags))
	v.SetEnvPrefix("CRAWL")
	v.AutomaticEnv()

	return cmd
}

func runCrawl(ctx context.Context, v *viper.Viper, seeds []string) error {
	if cfgFile := v.GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(v.GetString("log-level")),
		Pretty: v.GetBool("pretty"),
		Output: os.Stderr,
	})

	transport := client.NewHTTPTransport(client.TransportConfig{
		Timeout:   v.GetDuration("timeout"),
		UserAgent: v.GetString("user-agent"),
	})
	cfg := worker.Config{
		MaxWorkers:        v.GetInt("max-workers"),
		Deduplication:     v.GetBool("dedup"),
		DeduplicationKeys: v.GetStringSlice("dedup-keys"),
		Retry:             client.DefaultRetryConfig(),
		RequestInterval:   v.GetDuration("interval"),
		Transport:         transport,
	}

	maxDepth := v.GetInt("max-depth")
	requests := make([]*model.Request, 0, len(seeds))
	for _, seed := range seeds {
		requests = append(requests, model.NewRequest(seed, parsePage(0, maxDepth)))
	}

	result, err := worker.Run(ctx, requests, cfg)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	_, err = pipeline.New().
		AddFinalStep(func(records []any) error {
			for _, record := range records {
				if err := encoder.Encode(record); err != nil {
					return err
				}
			}
			return nil
		}).
		Run(ctx, result.Data)
	if err != nil {
		return err
	}
	return result.Err()
}

// parsePage builds the callback for one crawl depth: emit a record for the
// page and follow same-host links until maxDepth.
func parsePage(depth, maxDepth int) model.Callback {
	return func(resp *model.Response) any {
		record := pageRecord{
			URL:       resp.Request.URL,
			Status:    resp.StatusCode,
			Depth:     depth,
			FetchedAt: time.Now().UTC().Format(time.RFC3339),
		}

		doc, err := resp.Document()
		if err != nil {
			return record
		}
		record.Title = doc.Find("title").First().Text()

		items := []any{}
		base, err := url.Parse(resp.Request.URL)
		if err != nil {
			return append(items, record)
		}

		links := collectLinks(doc, base)
		record.Links = len(links)
		items = append(items, record)

		if depth < maxDepth {
			next := parsePage(depth+1, maxDepth)
			for _, link := range links {
				items = append(items, model.NewRequest(link, next))
			}
		}
		return items
	}
}

// collectLinks resolves every anchor against the page URL and keeps the
// same-host http(s) ones.
func collectLinks(doc *goquery.Document, base *url.URL) []string {
	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		resolved := base.ResolveReference(ref)
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		if resolved.Host != base.Host {
			return
		}
		resolved.Fragment = ""
		links = append(links, resolved.String())
	})
	return links
}
