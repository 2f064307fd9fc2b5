package app

import (
	"testing"

	"github.com/crossvenue/predictarb/pkg/types"
)

func TestParseScanPairs(t *testing.T) {
	pairs, err := parseScanPairs([]string{
		"m-1:111:222",
		"m-2:333:444:inverted:negrisk",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(pairs) != 2 {
		t.Fatalf("pairs = %d", len(pairs))
	}
	if pairs[0].PredictMarketID != "m-1" || pairs[0].Inverted || pairs[0].NegRisk {
		t.Fatalf("pair 0 = %+v", pairs[0])
	}
	if !pairs[1].Inverted || !pairs[1].NegRisk || pairs[1].HedgeNoTokenID != "444" {
		t.Fatalf("pair 1 = %+v", pairs[1])
	}

	if _, err := parseScanPairs([]string{"m-1:111"}); err == nil {
		t.Fatal("short pair must be rejected")
	}
	if _, err := parseScanPairs([]string{"m-1:111:222:bogus"}); err == nil {
		t.Fatal("unknown flag must be rejected")
	}
}

func TestBookFromMessageReversesWorstFirst(t *testing.T) {
	msg := &types.MarketMessage{
		EventType: "book",
		AssetID:   "777",
		Timestamp: 1700000000000,
		Bids: []types.RawLevel{
			{Price: "0.40", Size: "5"},
			{Price: "0.44", Size: "10"},
		},
		Asks: []types.RawLevel{
			{Price: "0.50", Size: "5"},
			{Price: "0.46", Size: "10"},
		},
	}

	book, err := bookFromMessage(msg)
	if err != nil {
		t.Fatal(err)
	}
	if bid, _ := book.BestBid(); bid.Price != 0.44 {
		t.Fatalf("best bid = %v", bid.Price)
	}
	if ask, _ := book.BestAsk(); ask.Price != 0.46 {
		t.Fatalf("best ask = %v", ask.Price)
	}
	if book.Source != types.SourceWS {
		t.Fatalf("source = %s", book.Source)
	}
	if book.SourceTimestamp.UnixMilli() != 1700000000000 {
		t.Fatalf("source ts = %v", book.SourceTimestamp)
	}
}

func TestBookFromMessageRejectsCrossed(t *testing.T) {
	msg := &types.MarketMessage{
		EventType: "book",
		AssetID:   "777",
		Bids:      []types.RawLevel{{Price: "0.50", Size: "5"}},
		Asks:      []types.RawLevel{{Price: "0.48", Size: "5"}},
	}
	if _, err := bookFromMessage(msg); err == nil {
		t.Fatal("crossed book must be rejected")
	}
}

func TestStateFanoutLatestWins(t *testing.T) {
	f := newStateFanout()
	sub := f.Subscribe()

	f.publish(true)
	f.publish(false) // overwrites the undelivered true

	select {
	case v := <-sub:
		if v {
			t.Fatal("expected the newest state (false)")
		}
	default:
		t.Fatal("no state delivered")
	}

	f.Unsubscribe(sub)
	if _, ok := <-sub; ok {
		t.Fatal("unsubscribed channel must be closed")
	}
}
