package db

import (
	"encoding/json"
	"testing"
)

func TestPoolStats_Serialization(t *testing.T) {
	stats := &PoolStats{
		TotalConns:      10,
		IdleConns:       5,
		AcquiredConns:   5,
		MaxConns:        20,
		AcquireCount:    100,
		AcquireDuration: "1.5s",
		Healthy:         true,
	}

	data, err := json.Marshal(stats)
	if err != nil {
		t.Fatalf("marshal pool stats: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal pool stats: %v", err)
	}
	if decoded["total_conns"] != float64(10) {
		t.Errorf("expected total_conns 10, got %v", decoded["total_conns"])
	}
	if decoded["healthy"] != true {
		t.Error("expected healthy to be true")
	}
}
