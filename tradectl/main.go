package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/docopt/docopt-go"

	"github.com/seawind-systems/tradewire/tradewire"
)

const TradeCtlVersion = "0.0.1"

var Out *log.Logger
var Err *log.Logger

func init() {
	Out = log.New(os.Stdout, "", 0)
	Err = log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lshortfile)
}

func main() {
	usage := `Trade gateway control.

Usage:
    tradectl time [--host=<host>] [--port=<port>] [--client_id=<client_id>]
    tradectl watch [--host=<host>] [--port=<port>] [--client_id=<client_id>]
        --symbol=<symbol>
        [--exchange=<exchange>]
        [--currency=<currency>]
    tradectl account [--host=<host>] [--port=<port>] [--client_id=<client_id>]
    tradectl positions [--host=<host>] [--port=<port>] [--client_id=<client_id>]

Options:
    -h --help                Show this screen.
    --version                Show version.
    --host=<host>            Gateway host [default: 127.0.0.1].
    --port=<port>            Gateway port [default: 4002].
    --client_id=<client_id>  Fixed client id (random if omitted).
    --symbol=<symbol>        Contract symbol.
    --exchange=<exchange>    Exchange [default: SMART].
    --currency=<currency>    Currency [default: USD].`

	opts, err := docopt.ParseArgs(usage, os.Args[1:], TradeCtlVersion)
	if err != nil {
		panic(err)
	}

	if time_, _ := opts.Bool("time"); time_ {
		timeCmd(opts)
	} else if watch, _ := opts.Bool("watch"); watch {
		watchCmd(opts)
	} else if account, _ := opts.Bool("account"); account {
		accountCmd(opts)
	} else if positions, _ := opts.Bool("positions"); positions {
		positionsCmd(opts)
	}
}

func newClient(opts docopt.Opts, ctx context.Context) *tradewire.Client {
	settings := tradewire.DefaultSettings()
	if host, err := opts.String("--host"); err == nil {
		settings.Host = host
	}
	if port, err := opts.Int("--port"); err == nil {
		settings.Port = port
	}
	if clientId, err := opts.Int("--client_id"); err == nil {
		settings.ClientId = clientId
	}
	return tradewire.NewClient(ctx, settings)
}

func timeCmd(opts docopt.Opts) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client := newClient(opts, ctx)
	defer client.Close()

	done := make(chan int64, 1)
	client.On(tradewire.EventCurrentTime, func(payload any) {
		currentTime := payload.(tradewire.CurrentTime)
		select {
		case done <- currentTime.Time:
		default:
		}
	})
	client.On(tradewire.EventNextValidId, func(any) {
		client.ReqCurrentTime()
	})
	client.On(tradewire.EventError, func(payload any) {
		apiError := payload.(tradewire.ApiError)
		Err.Printf("error %d: %s", apiError.Code, apiError.Message)
	})
	client.Connect()

	select {
	case t := <-done:
		Out.Printf("%s", time.Unix(t, 0).Format(time.RFC3339))
	case <-ctx.Done():
		Err.Printf("timeout")
		os.Exit(1)
	}
}

func watchCmd(opts docopt.Opts) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := newClient(opts, ctx)
	defer client.Close()
	registry := tradewire.NewRegistry(client)

	symbol, _ := opts.String("--symbol")
	exchange, _ := opts.String("--exchange")
	currency, _ := opts.String("--currency")
	contract := tradewire.Contract{
		Symbol:   symbol,
		SecType:  "STK",
		Exchange: exchange,
		Currency: currency,
	}

	type tickRecord struct {
		tickType int
		value    float64
	}

	handlers := map[tradewire.EventName]tradewire.EventHandlerFunc{
		tradewire.EventTickPrice: func(sub *tradewire.Subscription, payload any) {
			tick := payload.(tradewire.TickPrice)
			sub.Change(func(record any) bool {
				return record.(tickRecord).tickType == tick.TickType
			}, tickRecord{tickType: tick.TickType, value: tick.Price})
		},
		tradewire.EventTickSize: func(sub *tradewire.Subscription, payload any) {
			tick := payload.(tradewire.TickSize)
			sub.Change(func(record any) bool {
				return record.(tickRecord).tickType == tick.TickType
			}, tickRecord{tickType: tick.TickType, value: float64(tick.Size)})
		},
	}

	sub := registry.Register(
		func(client *tradewire.Client, reqId int) {
			client.ReqMarketData(reqId, contract, "", false)
		},
		func(client *tradewire.Client, reqId int) {
			client.CancelMarketData(reqId)
		},
		handlers,
		fmt.Sprintf("mktData/%s/%s/%s", symbol, exchange, currency),
		false,
	)
	unsubscribe := sub.Subscribe(func(update tradewire.Update) {
		for _, record := range update.Changed {
			tick := record.(tickRecord)
			Out.Printf("%s tick %d = %f", symbol, tick.tickType, tick.value)
		}
	}, func(apiError tradewire.ApiError) {
		Err.Printf("error %d: %s", apiError.Code, apiError.Message)
		cancel()
	}, nil)
	defer unsubscribe()

	client.Connect()
	waitForExit(ctx)
}

func accountCmd(opts docopt.Opts) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := newClient(opts, ctx)
	defer client.Close()

	client.On(tradewire.EventAccountValue, func(payload any) {
		value := payload.(tradewire.AccountValue)
		Out.Printf("%s = %s %s", value.Key, value.Value, value.Currency)
	})
	client.On(tradewire.EventManagedAccounts, func(payload any) {
		accounts := payload.(tradewire.ManagedAccounts)
		for _, account := range accounts.Accounts {
			client.ReqAccountUpdates(true, account)
		}
	})
	client.On(tradewire.EventNextValidId, func(any) {
		client.ReqManagedAccounts()
	})
	client.Connect()
	waitForExit(ctx)
}

func positionsCmd(opts docopt.Opts) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := newClient(opts, ctx)
	defer client.Close()
	registry := tradewire.NewRegistry(client)

	sub := registry.Register(
		func(client *tradewire.Client, reqId int) {
			client.ReqPositions()
		},
		func(client *tradewire.Client, reqId int) {
			client.CancelPositions()
		},
		map[tradewire.EventName]tradewire.EventHandlerFunc{
			tradewire.EventPosition: func(sub *tradewire.Subscription, payload any) {
				sub.Post(payload)
			},
			tradewire.EventPositionEnd: func(sub *tradewire.Subscription, payload any) {
				sub.EndBurst()
			},
		},
		"positions",
		true,
	)
	unsubscribe := sub.Subscribe(func(update tradewire.Update) {
		for _, record := range update.Added {
			position := record.(tradewire.Position)
			Out.Printf("%s %s %f @ %f",
				position.Account,
				position.Contract.Symbol,
				float64(position.Position),
				position.AvgCost,
			)
		}
	}, nil, nil)
	defer unsubscribe()

	client.Connect()
	waitForExit(ctx)
}

func waitForExit(ctx context.Context) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigs:
	case <-ctx.Done():
	}
}
