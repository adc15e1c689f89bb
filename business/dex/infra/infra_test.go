package infra

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	chainDomain "github.com/fd1az/dexops/business/chain/domain"
	"github.com/fd1az/dexops/business/dex/domain"
	"github.com/fd1az/dexops/internal/network"
	"github.com/fd1az/dexops/pkg/ui"
)

func testProfile(t *testing.T) network.Profile {
	t.Helper()
	p, err := network.Lookup("bsc")
	if err != nil {
		t.Fatal(err)
	}
	return p
}

var (
	wallet = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	peer   = common.HexToAddress("0x00000000000000000000000000000000000000f2")
)

func TestConsoleReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporterTo(&buf, testProfile(t))

	if err := r.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	r.ReportBlock(&chainDomain.Block{Number: 42, Hash: common.HexToHash("0xabc"), GasUsed: 10, GasLimit: 100})
	r.ReportTransfer(domain.TransferEvent{
		Symbol:      "TKB",
		From:        wallet,
		To:          peer,
		Amount:      decimal.RequireFromString("1.5"),
		BlockNumber: 42,
		TxHash:      common.HexToHash("0x01"),
		Direction:   domain.DirectionOut,
	})
	r.ReportBalances(decimal.RequireFromString("0.25"), chainDomain.NewGasPrice(big.NewInt(3_000_000_000), time.Now()), 2)
	r.UpdateConnectionStatus(chainDomain.StateConnected)
	r.UpdateConnectionStatus(chainDomain.StateConnected)
	r.ReportError(errors.New("boom"))
	if err := r.Stop(); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{
		"Watching BNB Smart Chain",
		"block #42",
		"TRANSFER out",
		"1.5 TKB",
		peer.Hex(),
		"https://bscscan.com/tx/",
		"balance 0.250000 BNB | gas 3.00 gwei | pending 2",
		"error: boom",
		"Watch stopped",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if n := strings.Count(out, "node: connected"); n != 1 {
		t.Errorf("connection state printed %d times, want 1", n)
	}
}

func TestTUIReporter_SendsMessages(t *testing.T) {
	var msgs []tea.Msg
	r := NewTUIReporter(testProfile(t), "0x00f1...00f1")
	r.send = func(m tea.Msg) { msgs = append(msgs, m) }

	_ = r.Start(context.Background())
	r.ReportTransfer(domain.TransferEvent{
		Symbol:    "TKB",
		From:      peer,
		To:        wallet,
		Amount:    decimal.NewFromInt(2),
		Direction: domain.DirectionIn,
	})
	r.ReportBalances(decimal.NewFromInt(1), nil, 0)
	r.UpdateConnectionStatus(chainDomain.StateReconnecting)

	if len(msgs) != 5 {
		t.Fatalf("got %d messages, want 5", len(msgs))
	}
	if w, ok := msgs[0].(ui.WalletMsg); !ok || w.Address != "0x00f1...00f1" {
		t.Errorf("first message = %#v", msgs[0])
	}
	tr, ok := msgs[2].(ui.TransferMsg)
	if !ok {
		t.Fatalf("third message = %#v", msgs[2])
	}
	if tr.Direction != "in" || !strings.EqualFold(tr.Counterparty, "0x0000...00f2") {
		t.Errorf("transfer = %+v", tr)
	}
	if b := msgs[3].(ui.BalancesMsg); b.GasSymbol != "BNB" || !b.GasGwei.IsZero() {
		t.Errorf("balances = %+v", b)
	}
	if c := msgs[4].(ui.ConnectionStatusMsg); c.State != "reconnecting" {
		t.Errorf("status = %+v", c)
	}
}
