package ui

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func TestHTTPBase(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"ws://localhost:8080/ws", "http://localhost:8080", false},
		{"wss://amm.example.com/ws?x=1", "https://amm.example.com", false},
		{"http://127.0.0.1:9000/ws", "http://127.0.0.1:9000", false},
		{"ftp://host/ws", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := HTTPBase(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("HTTPBase() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("HTTPBase() = %q, want %q", got, tt.want)
			}
		})
	}
}

const marketsBody = `[
  {"market":{"id":1,"quest":"Will it rain?","outcome":"unresolved","expired":false},
   "priceYes":"0.6","priceNo":"0.4","totalLp":"1000","holders":2},
  {"market":{"id":2,"quest":"Will it snow?","outcome":"no","expired":true},
   "priceYes":"0.3","priceNo":"0.7","totalLp":"500","holders":1}
]`

func TestRemoteMarkets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/markets" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, marketsBody)
	}))
	defer srv.Close()

	remote, err := NewRemoteMarkets(srv.URL)
	if err != nil {
		t.Fatalf("NewRemoteMarkets() error = %v", err)
	}

	rows, err := remote.Markets(context.Background(), t0)
	if err != nil {
		t.Fatalf("Markets() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	if rows[0].PriceYes.String() != "0.6" || rows[0].Liquidity.String() != "1000" || rows[0].Holders != 2 {
		t.Errorf("rows[0] = %+v", rows[0])
	}
	if got := rows[0].Status(); got != "trading" {
		t.Errorf("rows[0].Status() = %q, want trading", got)
	}
	if got := rows[1].Status(); got != "resolved no" {
		t.Errorf("rows[1].Status() = %q, want resolved no", got)
	}
}

func TestPollRemote_ReportsErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"error":{"code":"SERVICE_UNAVAILABLE","message":"down"}}`)
	}))
	defer srv.Close()

	remote, err := NewRemoteMarkets(srv.URL)
	if err != nil {
		t.Fatalf("NewRemoteMarkets() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	msgs := make(chan tea.Msg, 4)
	done := make(chan struct{})
	go func() {
		PollRemote(ctx, remote, time.Hour, func() time.Time { return t0 }, func(m tea.Msg) { msgs <- m })
		close(done)
	}()

	select {
	case m := <-msgs:
		if _, ok := m.(ErrorMsg); !ok {
			t.Errorf("first message = %T, want ErrorMsg", m)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no message from PollRemote")
	}
	cancel()
	<-done
}
