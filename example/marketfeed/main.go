package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/BullionBear/marketfeed"
	"github.com/BullionBear/marketfeed/internal/config"
	"github.com/BullionBear/marketfeed/internal/decode"
	"github.com/BullionBear/marketfeed/internal/transport"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Println("=== Bybit L2 order book example ===")
	if err := streamBybitBook(ctx); err != nil {
		log.Fatalf("stream failed: %v", err)
	}
}

func streamBybitBook(ctx context.Context) error {
	tr, err := transport.Dial(ctx, "wss://stream.bybit.com/v5/public/spot")
	if err != nil {
		return fmt.Errorf("dial bybit: %w", err)
	}

	client := marketfeed.NewClient(256)
	conn := client.Connect(tr, marketfeed.ExchangeBybit, decode.Bybit{})

	inst := marketfeed.Instrument{
		Symbol: marketfeed.Symbol{Base: "BTC", Quote: "USDT"},
		Kind:   marketfeed.Spot,
	}
	subscribeFrame := []byte(`{"op":"subscribe","args":["orderbook.50.BTCUSDT"]}`)

	// Batch 5 accepted deltas per emitted update instead of emitting on
	// every message; set WebsocketBufferEnabled false to go back to
	// immediate per-delta emission.
	bookCfg := config.BookConfig{WebsocketBufferEnabled: true, WebsocketBufferLimit: 5}

	if err := conn.Subscribe("orderbook.50|BTCUSDT", inst, marketfeed.OutputOrderBook,
		50, marketfeed.FamilyBybit, bookCfg.EffectiveBufferLimit(), func() error {
			return conn.SendControl(ctx, subscribeFrame)
		}); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	client.Join(conn)
	defer client.Close()

	stream := client.Stream()
	for {
		result, err := stream.Next(ctx)
		if err != nil {
			return err
		}
		if !result.IsOk() {
			fmt.Printf("🔴 %v\n", result.Err)
			continue
		}
		book := result.Event.OrderBook
		if book == nil {
			continue
		}
		best := book.IntoL1()
		fmt.Printf("📊 %s bid=%v ask=%v @ %s\n",
			result.Event.Instrument, best.BestBid, best.BestAsk,
			result.Event.ExchangeTime.Format(time.RFC3339))
	}
}
