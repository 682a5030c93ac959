package account_test

import (
	"testing"

	"papertrade/internal/account"
)

func TestLedger_CreditDebit(t *testing.T) {
	l := account.NewLedger()
	l.Credit("USDT", 1000)
	l.Debit("USDT", 300)

	if !almost(l.Total("USDT"), 700) {
		t.Errorf("total = %f, want 700", l.Total("USDT"))
	}
	if !almost(l.Available("USDT"), 700) {
		t.Errorf("available = %f, want 700", l.Available("USDT"))
	}
}

func TestLedger_ReserveReducesAvailableNotTotal(t *testing.T) {
	l := account.NewLedger()
	l.Credit("USDT", 1000)

	if err := l.Reserve("USDT", 400); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if !almost(l.Total("USDT"), 1000) {
		t.Errorf("reserve changed total: %f", l.Total("USDT"))
	}
	if !almost(l.Reserved("USDT"), 400) || !almost(l.Available("USDT"), 600) {
		t.Errorf("reserved=%f available=%f, want 400/600",
			l.Reserved("USDT"), l.Available("USDT"))
	}
}

func TestLedger_ReserveInsufficient(t *testing.T) {
	l := account.NewLedger()
	l.Credit("USDT", 100)

	if err := l.Reserve("USDT", 100.5); err == nil {
		t.Fatal("expected error reserving beyond available")
	}
	if l.Reserved("USDT") != 0 {
		t.Errorf("failed reserve left a partial hold: %f", l.Reserved("USDT"))
	}
}

func TestLedger_ReserveNegative(t *testing.T) {
	l := account.NewLedger()
	if err := l.Reserve("USDT", -1); err == nil {
		t.Fatal("expected error for negative reserve")
	}
}

func TestLedger_ReleaseClampsAtZero(t *testing.T) {
	l := account.NewLedger()
	l.Credit("USDT", 1000)
	if err := l.Reserve("USDT", 100); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	l.Release("USDT", 250)
	if l.Reserved("USDT") != 0 {
		t.Errorf("over-release should clamp reserved at 0, got %f", l.Reserved("USDT"))
	}
	if !almost(l.Available("USDT"), 1000) {
		t.Errorf("available = %f, want 1000", l.Available("USDT"))
	}
}

func TestLedger_ReleaseSweepsFloatDust(t *testing.T) {
	l := account.NewLedger()
	l.Credit("USDT", 1000)

	// 9.9 + 9.8 is not exactly representable; releasing both holds must
	// still leave reserved at exactly zero, not a sub-dust residue.
	if err := l.Reserve("USDT", 9.9); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := l.Reserve("USDT", 9.8); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	l.Release("USDT", 9.9)
	l.Release("USDT", 9.8)

	if l.Reserved("USDT") != 0 {
		t.Errorf("reserved = %g after releasing every hold, want exactly 0",
			l.Reserved("USDT"))
	}
	if l.Available("USDT") != 1000 {
		t.Errorf("available = %f, want 1000", l.Available("USDT"))
	}
}

func TestLedger_AvailableClampedAtZero(t *testing.T) {
	l := account.NewLedger()
	l.Credit("USDT", 100)
	if err := l.Reserve("USDT", 100); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	l.Debit("USDT", 50)

	if l.Available("USDT") != 0 {
		t.Errorf("available should clamp at 0, got %f", l.Available("USDT"))
	}
	if !almost(l.Total("USDT"), 50) {
		t.Errorf("total = %f, want 50", l.Total("USDT"))
	}
}

func TestLedger_UnknownAssetZero(t *testing.T) {
	l := account.NewLedger()
	if l.Total("ETH") != 0 || l.Reserved("ETH") != 0 || l.Available("ETH") != 0 {
		t.Error("unknown asset should read as zero")
	}
}

func TestLedger_AssetsSorted(t *testing.T) {
	l := account.NewLedger()
	l.Credit("USDT", 1)
	l.Credit("BTC", 1)
	l.Credit("ETH", 1)

	assets := l.Assets()
	want := []string{"BTC", "ETH", "USDT"}
	for i, a := range want {
		if assets[i] != a {
			t.Fatalf("assets = %v, want %v", assets, want)
		}
	}
}
