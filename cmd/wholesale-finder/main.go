package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/maltedev/wholesale-finder/internal/app"
	"github.com/maltedev/wholesale-finder/internal/config"
	"github.com/maltedev/wholesale-finder/internal/wholesale"
	"github.com/maltedev/wholesale-finder/pkg/logger"
	"github.com/urfave/cli/v2"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "wholesale-finder",
		Usage: "find DHgate wholesale equivalents for retail products",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override the configured log level",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "print results as JSON",
			},
		},
		Commands: []*cli.Command{
			findCommand(),
			searchCommand(),
			scrapeCommand(),
			checkCommand(),
			amazonCommand(),
			sellersCommand(),
		},
	}
}

func findCommand() *cli.Command {
	return &cli.Command{
		Name:      "find",
		Usage:     "rank DHgate listings similar to a retail product title",
		ArgsUsage: "<title>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "max", Value: wholesale.DefaultMaxResults, Usage: "maximum ranked results"},
			&cli.StringFlag{Name: "retail-price", Usage: "retail price to compare margins against, e.g. $29.99"},
			&cli.BoolFlag{Name: "from-amazon", Usage: "treat the argument as an Amazon search and use its top hit"},
		},
		Action: func(c *cli.Context) error {
			title, err := joinedArgs(c, "title")
			if err != nil {
				return err
			}
			return withPipeline(c, func(p *app.Pipeline) error {
				retail := c.String("retail-price")

				if c.Bool("from-amazon") {
					if p.Amazon == nil {
						return cli.Exit("amazon api key is not configured", 1)
					}
					products, err := p.Amazon.TopProducts(c.Context, title, 1)
					if err != nil {
						return err
					}
					if len(products) == 0 {
						return cli.Exit("no amazon products found for "+title, 1)
					}
					title = products[0].Title
					if retail == "" {
						retail = products[0].Price
					}
				}

				var retailPrice float64
				if retail != "" {
					price, ok := wholesale.ParseRetailPrice(retail)
					if !ok {
						return cli.Exit("could not read a price from "+retail, 1)
					}
					retailPrice = price
				}

				results := p.Finder.FindWholesaleEquivalent(c.Context, title, c.Int("max"))

				var comparison *wholesale.Comparison
				if retailPrice > 0 {
					if comparison, err = wholesale.Compare(retailPrice, results); err != nil {
						return err
					}
				}

				if c.Bool("json") {
					return writeJSON(c.App.Writer, map[string]any{
						"title":      title,
						"results":    results,
						"comparison": comparison,
					})
				}
				renderRanked(c.App.Writer, title, results)
				if comparison != nil {
					renderComparison(c.App.Writer, comparison)
				}
				return nil
			})
		},
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "search DHgate and scrape each result",
		ArgsUsage: "<term>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "max", Value: 5, Usage: "maximum results"},
		},
		Action: func(c *cli.Context) error {
			term, err := joinedArgs(c, "term")
			if err != nil {
				return err
			}
			return withPipeline(c, func(p *app.Pipeline) error {
				results := p.Search.SearchProducts(c.Context, term, c.Int("max"))
				if c.Bool("json") {
					return writeJSON(c.App.Writer, results)
				}
				renderSearch(c.App.Writer, term, results)
				return nil
			})
		},
	}
}

func scrapeCommand() *cli.Command {
	return &cli.Command{
		Name:      "scrape",
		Usage:     "scrape one or more DHgate product pages",
		ArgsUsage: "<url> [url...]",
		Action: func(c *cli.Context) error {
			urls := c.Args().Slice()
			if len(urls) == 0 {
				return cli.Exit("at least one product url is required", 1)
			}
			return withPipeline(c, func(p *app.Pipeline) error {
				if len(urls) == 1 {
					result := p.Scraper.ScrapeProduct(c.Context, urls[0])
					if c.Bool("json") {
						return writeJSON(c.App.Writer, result)
					}
					renderScrape(c.App.Writer, result)
					return nil
				}

				results := p.Scraper.ScrapeProducts(c.Context, urls)
				if c.Bool("json") {
					return writeJSON(c.App.Writer, results)
				}
				for _, result := range results {
					renderScrape(c.App.Writer, result)
				}
				return nil
			})
		},
	}
}

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "check that DHgate is reachable through the request strategies",
		Action: func(c *cli.Context) error {
			return withPipeline(c, func(p *app.Pipeline) error {
				reachable, err := p.Search.TestConnection(c.Context)
				if err != nil {
					return cli.Exit(err.Error(), 2)
				}
				fmt.Fprintf(c.App.Writer, "reachable: %s\n", reachable)
				return nil
			})
		},
	}
}

func amazonCommand() *cli.Command {
	return &cli.Command{
		Name:      "amazon",
		Usage:     "look up top Amazon products through the product data API",
		ArgsUsage: "<term>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Value: 3, Usage: "number of products"},
		},
		Action: func(c *cli.Context) error {
			term, err := joinedArgs(c, "term")
			if err != nil {
				return err
			}
			return withPipeline(c, func(p *app.Pipeline) error {
				if p.Amazon == nil {
					return cli.Exit("amazon api key is not configured", 1)
				}
				products, err := p.Amazon.TopProducts(c.Context, term, c.Int("limit"))
				if err != nil {
					return err
				}
				if c.Bool("json") {
					return writeJSON(c.App.Writer, products)
				}
				renderAmazon(c.App.Writer, products)
				return nil
			})
		},
	}
}

func sellersCommand() *cli.Command {
	return &cli.Command{
		Name:      "sellers",
		Usage:     "list Google Shopping sellers for a product",
		ArgsUsage: "<query>",
		Action: func(c *cli.Context) error {
			q, err := joinedArgs(c, "query")
			if err != nil {
				return err
			}
			return withPipeline(c, func(p *app.Pipeline) error {
				if p.Shopping == nil {
					return cli.Exit("shopping api key is not configured", 1)
				}
				sellers, err := p.Shopping.FindWholesalers(c.Context, q)
				if err != nil {
					return err
				}
				if c.Bool("json") {
					return writeJSON(c.App.Writer, sellers)
				}
				renderSellers(c.App.Writer, q, sellers)
				return nil
			})
		},
	}
}

func withPipeline(c *cli.Context, fn func(p *app.Pipeline) error) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	level := cfg.Logging.Level
	if override := c.String("log-level"); override != "" {
		level = override
	}
	log := logger.New(level, cfg.Logging.Format)

	p, err := app.Build(c.Context, cfg, log)
	if err != nil {
		return err
	}
	defer p.Close()

	return fn(p)
}

func joinedArgs(c *cli.Context, name string) (string, error) {
	joined := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if joined == "" {
		return "", cli.Exit(name+" is required", 1)
	}
	return joined, nil
}
