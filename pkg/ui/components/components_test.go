package components

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestTransfers_NewestFirstAndCapped(t *testing.T) {
	c := NewTransfersComponent(3, 2)
	for i := 1; i <= 4; i++ {
		c.Add(TransferRow{BlockNumber: uint64(i), Symbol: "TKB", Direction: "in", Amount: decimal.NewFromInt(int64(i))})
	}

	if c.Len() != 3 {
		t.Fatalf("len = %d, want 3", c.Len())
	}
	if c.rows[0].BlockNumber != 4 || c.rows[2].BlockNumber != 2 {
		t.Errorf("rows not newest first: %+v", c.rows)
	}

	c.ScrollDown()
	c.ScrollDown()
	if c.offset != 1 {
		t.Errorf("offset = %d, want 1", c.offset)
	}
	if !strings.Contains(c.View(), "showing 2-3 of 3") {
		t.Error("view missing window footer")
	}

	c.Clear()
	if c.Len() != 0 || c.offset != 0 {
		t.Error("clear left state behind")
	}
}

func TestStatus_UpdateMerges(t *testing.T) {
	s := NewStatusComponent()
	s.Update(ConnectionStatus{Name: "Node", State: "connected", LastBlock: 10})
	s.Update(ConnectionStatus{Name: "Node", State: "reconnecting"})

	got, ok := s.Get("Node")
	if !ok {
		t.Fatal("connection not stored")
	}
	if got.LastBlock != 10 {
		t.Errorf("last block = %d, want 10", got.LastBlock)
	}
	if got.Connected() {
		t.Error("reconnecting reported as connected")
	}
}
