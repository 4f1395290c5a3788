package ui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/prediction-amm/business/amm/domain"
	market "github.com/fd1az/prediction-amm/business/market/domain"
	"github.com/fd1az/prediction-amm/internal/asset"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func testModel() Model {
	m := New("local engine")
	m.now = func() time.Time { return t0 }
	m.welcomeStart = t0
	return m
}

func buyEvent(id uint64, amount, yes string) domain.Event {
	e := domain.Event{
		Kind:      domain.EventBuy,
		MarketID:  id,
		Account:   common.HexToAddress("0xb0b"),
		Outcome:   market.Yes,
		Timestamp: t0,
	}
	e.Collateral.Set(asset.MustParseUnits(amount))
	e.Shares.Set(asset.MustParseUnits("190"))
	e.Fee.Set(asset.MustParseUnits("0.6"))
	y := asset.MustParseUnits(yes)
	e.PriceYes.Set(y)
	e.PriceNo.Sub(asset.MustParseUnits("1"), y)
	return e
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestModel_WelcomeAdvancesOnKey(t *testing.T) {
	started := make(chan struct{}, 1)
	OnStartModules = func() { started <- struct{}{} }
	defer func() { OnStartModules = nil }()

	m := update(t, testModel(), tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	if m.phase != PhaseDashboard {
		t.Fatalf("phase = %s, want dashboard", m.phase)
	}
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("OnStartModules not called")
	}
}

func TestModel_WelcomeTimesOut(t *testing.T) {
	m := testModel()
	m = update(t, m, TickMsg{})
	if m.phase != PhaseWelcome {
		t.Fatalf("phase = %s before timeout", m.phase)
	}

	m.now = func() time.Time { return t0.Add(WelcomeDuration) }
	m = update(t, m, TickMsg{})
	if m.phase != PhaseDashboard {
		t.Errorf("phase = %s after timeout, want dashboard", m.phase)
	}
}

func TestModel_EventUpdatesMarketsAndFeed(t *testing.T) {
	m := testModel()
	m.phase = PhaseDashboard

	m = update(t, m, EventMsg{Event: buyEvent(3, "100", "0.6")})

	row, ok := m.markets.Get(3)
	if !ok {
		t.Fatal("market 3 not added from event")
	}
	if row.PriceYes.String() != "0.6" || row.PriceNo.String() != "0.4" {
		t.Errorf("prices = %s/%s, want 0.6/0.4", row.PriceYes, row.PriceNo)
	}
	if row.Volume.String() != "100" {
		t.Errorf("volume = %s, want 100", row.Volume)
	}
	if m.activity.Len() != 1 {
		t.Errorf("feed len = %d, want 1", m.activity.Len())
	}
	if s := m.stats.Stats(); s.Trades != 1 || s.Fees.String() != "0.6" {
		t.Errorf("stats = %+v", s)
	}
	if !strings.Contains(m.View(), "MARKETS (1)") {
		t.Error("dashboard should list the market")
	}
}

func TestModel_PauseFreezesFeed(t *testing.T) {
	m := testModel()
	m.phase = PhaseDashboard

	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	if !m.paused {
		t.Fatal("p should pause")
	}
	m = update(t, m, EventMsg{Event: buyEvent(1, "10", "0.55")})
	if m.activity.Len() != 0 {
		t.Error("paused feed should not grow")
	}
	if m.stats.Stats().Events != 1 {
		t.Error("paused model should still count events")
	}
}

func TestModel_ResolveAndSnapshot(t *testing.T) {
	m := testModel()
	m.phase = PhaseDashboard

	m = update(t, m, SnapshotMsg{At: t0, Markets: MarketRows(nil, t0)})
	resolve := domain.Event{Kind: domain.EventResolve, MarketID: 2, Outcome: market.No, Timestamp: t0}
	m = update(t, m, EventMsg{Event: resolve})

	row, _ := m.markets.Get(2)
	if got := row.Status(); got != "resolved no" {
		t.Errorf("status = %q, want resolved no", got)
	}
}

func TestModel_ErrorsKeepLastThree(t *testing.T) {
	m := testModel()
	for i := 0; i < 5; i++ {
		m = update(t, m, ErrorMsg{Error: errors.New("boom")})
	}
	if len(m.errors) != 3 {
		t.Errorf("errors = %d, want 3", len(m.errors))
	}
	if m.stats.Stats().Errors != 5 {
		t.Errorf("error count = %d, want 5", m.stats.Stats().Errors)
	}

	m.phase = PhaseDashboard
	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("e")})
	if len(m.errors) != 0 {
		t.Error("e should clear errors")
	}
}

func TestModel_Quit(t *testing.T) {
	next, cmd := testModel().Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if !next.(Model).quitting || cmd == nil {
		t.Error("q should quit")
	}
}

func TestPublisher_DropsWhenFull(t *testing.T) {
	p := NewPublisher(1)
	ctx := context.Background()
	_ = p.Publish(ctx, buyEvent(1, "10", "0.5"))
	_ = p.Publish(ctx, buyEvent(1, "20", "0.5"))
	if p.Dropped() != 1 {
		t.Fatalf("dropped = %d, want 1", p.Dropped())
	}

	ctx, cancel := context.WithCancel(ctx)
	got := make(chan tea.Msg, 1)
	go p.Run(ctx, func(msg tea.Msg) {
		got <- msg
		cancel()
	})

	select {
	case msg := <-got:
		ev, ok := msg.(EventMsg)
		if !ok || ev.Event.MarketID != 1 {
			t.Errorf("got %#v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestConsolePrinter_Publish(t *testing.T) {
	var buf bytes.Buffer
	p := NewConsolePrinter(&buf)
	p.Start("local engine")
	if err := p.Publish(context.Background(), buyEvent(4, "100", "0.6")); err != nil {
		t.Fatal(err)
	}
	p.Stop()

	out := buf.String()
	for _, want := range []string{"market #4", "Paid:           100 for 190 yes shares (fee 0.6)", "YES 0.6000  NO 0.4000"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
