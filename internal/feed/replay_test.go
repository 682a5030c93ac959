package feed_test

import (
	"testing"

	"papertrade/internal/feed"
	"papertrade/internal/model"
)

func step(bid, ask, rate float64) feed.Step {
	return feed.Step{
		Book: &model.OrderBookSnapshot{
			Bids: []model.PriceLevel{{Price: bid, Size: 1}},
			Asks: []model.PriceLevel{{Price: ask, Size: 1}},
		},
		FundingRate: rate,
	}
}

func TestReplayFeed_ServesStepsInOrder(t *testing.T) {
	f := feed.NewReplayFeed([]feed.Step{
		step(100.00, 100.05, 0),
		step(100.10, 100.15, 0.0001),
	})

	if f.Book() != nil {
		t.Error("feed served a book before the first Advance")
	}

	if !f.Advance() {
		t.Fatal("first Advance failed")
	}
	if bid, _ := f.Book().BestBid(); bid.Price != 100.00 {
		t.Errorf("bid = %f, want 100.00", bid.Price)
	}
	if f.FundingRate() != 0 {
		t.Errorf("rate = %f, want 0", f.FundingRate())
	}

	if !f.Advance() {
		t.Fatal("second Advance failed")
	}
	if bid, _ := f.Book().BestBid(); bid.Price != 100.10 {
		t.Errorf("bid = %f, want 100.10", bid.Price)
	}
	if f.FundingRate() != 0.0001 {
		t.Errorf("rate = %f, want 0.0001", f.FundingRate())
	}
}

func TestReplayFeed_ExhaustionKeepsLastStep(t *testing.T) {
	f := feed.NewReplayFeed([]feed.Step{step(100.00, 100.05, 0)})

	f.Advance()
	if f.Advance() {
		t.Error("Advance past the end should report false")
	}
	if f.Book() == nil {
		t.Error("exhausted feed should keep serving the final step")
	}
	if f.Remaining() != 0 {
		t.Errorf("remaining = %d, want 0", f.Remaining())
	}
}

func TestStaticFeed_SetAndGet(t *testing.T) {
	f := feed.NewStaticFeed()
	if f.Book() != nil || f.FundingRate() != 0 {
		t.Error("fresh static feed should be empty")
	}

	book := &model.OrderBookSnapshot{}
	f.SetBook(book)
	f.SetFundingRate(0.0002)
	if f.Book() != book || f.FundingRate() != 0.0002 {
		t.Error("static feed did not return what was set")
	}
}
