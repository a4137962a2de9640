package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/uhyunpark/stockex/pkg/api"
	"github.com/uhyunpark/stockex/pkg/app/core/engine"
	"github.com/uhyunpark/stockex/pkg/app/core/market"
	"github.com/uhyunpark/stockex/pkg/app/core/orderbook"
	"github.com/uhyunpark/stockex/pkg/feed"
	"github.com/uhyunpark/stockex/pkg/feed/kafka"
)

type sendOptions struct {
	apiURL      string
	brokers     []string
	topic       string
	symbolsFile string
	symbols     []string // checked instead of the file when set
	offline     bool
}

func newSendCmd() *cobra.Command {
	var opts sendOptions
	cmd := &cobra.Command{
		Use:   "send <owner> <symbol> <side> <quantity> <price>",
		Short: "Validate one order and publish it to Kafka or the HTTP API",
		Example: "  exchange send user1 XYZ BUY 100 50.0 --api http://localhost:8080\n" +
			"  exchange send user2 XYZ SELL 100 50.0 --brokers localhost:9092",
		Args: cobra.ExactArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			if opts.symbolsFile == "" {
				opts.symbolsFile = cfg.Symbols.File
			}
			if opts.topic == "" {
				opts.topic = cfg.Kafka.OrdersTopic
			}
			if opts.apiURL == "" && len(opts.brokers) == 0 {
				opts.brokers = cfg.Kafka.Brokers
			}

			order, err := parseOrderArgs(args)
			if err != nil {
				return err
			}
			return runSend(cmd.Context(), cmd.OutOrStdout(), opts, order)
		},
	}
	cmd.Flags().StringVar(&opts.apiURL, "api", "", "POST to this exchange API base URL instead of Kafka")
	cmd.Flags().StringSliceVar(&opts.brokers, "brokers", nil, "kafka brokers (default KAFKA_BROKERS)")
	cmd.Flags().StringVar(&opts.topic, "topic", "", "orders topic (default KAFKA_ORDERS_TOPIC)")
	cmd.Flags().StringVar(&opts.symbolsFile, "symbols-file", "", "allow-list file to check against (default SYMBOLS_FILE)")
	cmd.Flags().StringSliceVar(&opts.symbols, "symbols", nil, "check against this allow-list instead of the file")
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "validate and print the record without sending it")
	return cmd
}

func parseOrderArgs(args []string) (orderbook.Order, error) {
	side, err := orderbook.ParseSide(args[2])
	if err != nil {
		return orderbook.Order{}, err
	}
	qty, err := strconv.ParseInt(args[3], 10, 64)
	if err != nil {
		return orderbook.Order{}, errors.Wrapf(err, "quantity %q", args[3])
	}
	price, err := decimal.NewFromString(args[4])
	if err != nil {
		return orderbook.Order{}, errors.Wrapf(err, "price %q", args[4])
	}
	return orderbook.Order{
		Owner:    args[0],
		Symbol:   args[1],
		Side:     side,
		Quantity: qty,
		Price:    price,
	}, nil
}

// precheck applies the engine's admission rules on the client so obvious
// mistakes never reach the feed.
func precheck(o orderbook.Order, registry market.Registry) error {
	if o.Quantity != engine.LotSize {
		return fmt.Errorf("quantity must be %d shares", engine.LotSize)
	}
	if !registry.IsTradable(o.Symbol) {
		return fmt.Errorf("stock %q not added, add it first with `exchange symbols add %s`", o.Symbol, o.Symbol)
	}
	return nil
}

func runSend(ctx context.Context, out io.Writer, opts sendOptions, o orderbook.Order) error {
	var registry market.Registry
	if len(opts.symbols) > 0 {
		registry = market.NewMemoryRegistry(opts.symbols...)
	} else {
		registry = market.NewFileRegistry(opts.symbolsFile, nil)
	}
	if err := precheck(o, registry); err != nil {
		return err
	}

	record, err := feed.EncodeOrder(o)
	if err != nil {
		return err
	}

	switch {
	case opts.offline:
		fmt.Fprintln(out, string(record))
		return nil

	case opts.apiURL != "":
		resp, err := postOrder(ctx, opts.apiURL, record)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "order %s", resp.Status)
		if resp.Reason != "" {
			fmt.Fprintf(out, " (%s)", resp.Reason)
		}
		if resp.Trade != nil {
			fmt.Fprintf(out, ": %s bought %d %s from %s at %s",
				resp.Trade.Buyer, resp.Trade.Quantity, resp.Trade.Stock, resp.Trade.Seller, resp.Trade.Price)
		}
		fmt.Fprintln(out)
		return nil

	case len(opts.brokers) > 0:
		producer := kafka.NewOrderProducer(opts.brokers, opts.topic)
		defer producer.Close()

		sendCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := producer.Send(sendCtx, o); err != nil {
			return errors.Wrap(err, "send order")
		}
		fmt.Fprintf(out, "sent order %s\n", record)
		return nil

	default:
		return errors.New("no destination: pass --api or --brokers (or set KAFKA_BROKERS)")
	}
}

func postOrder(ctx context.Context, baseURL string, record []byte) (api.SubmitOrderResponse, error) {
	var resp api.SubmitOrderResponse

	url := strings.TrimRight(baseURL, "/") + "/api/v1/orders"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(record))
	if err != nil {
		return resp, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	httpResp, err := client.Do(req)
	if err != nil {
		return resp, errors.Wrap(err, "post order")
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		var e api.ErrorResponse
		_ = json.NewDecoder(httpResp.Body).Decode(&e)
		return resp, fmt.Errorf("exchange answered %s: %s %s", httpResp.Status, e.Error, e.Message)
	}
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return resp, errors.Wrap(err, "decode response")
	}
	return resp, nil
}
