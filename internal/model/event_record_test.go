package model

import (
	"encoding/json"
	"testing"
)

func TestEventRecordJSONFieldNames(t *testing.T) {
	record := EventRecord{
		ChainID:     56,
		Event:       "TransferWithReward",
		Address:     "0x1111111111111111111111111111111111111111",
		BlockNumber: 36000000,
		BlockHash:   "0xabc123",
		TxHash:      "0xdef456",
		TxIndex:     7,
		LogIndex:    12,
		Args: map[string]interface{}{
			"from":   "0x2222222222222222222222222222222222222222",
			"value":  "12345678901234567890",
			"reward": "123456789012345678",
		},
		IngestedAt: "2024-01-01T00:00:00Z",
	}

	b, err := json.Marshal(record)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	for _, key := range []string{"chain_id", "event", "block_number", "tx_hash", "log_index", "args", "ingested_at"} {
		if _, ok := decoded[key]; !ok {
			t.Fatalf("missing key %q in %s", key, b)
		}
	}
	if _, ok := decoded["raw"]; ok {
		t.Fatalf("raw should be omitted when nil")
	}

	args, ok := decoded["args"].(map[string]interface{})
	if !ok {
		t.Fatalf("args should be an object")
	}
	if _, ok := args["value"].(string); !ok {
		t.Fatalf("value should stay a string")
	}
}

func TestEventRecordArgAccessors(t *testing.T) {
	record := EventRecord{Args: map[string]interface{}{"reward": "10", "flag": true}}

	if got := record.ArgString("reward"); got != "10" {
		t.Fatalf("reward mismatch: %q", got)
	}
	if got := record.ArgString("flag"); got != "" {
		t.Fatalf("non-string arg should give empty string, got %q", got)
	}
	if _, ok := record.Arg("missing"); ok {
		t.Fatalf("missing arg reported present")
	}
	if _, ok := (EventRecord{}).Arg("reward"); ok {
		t.Fatalf("nil args reported present")
	}
}
