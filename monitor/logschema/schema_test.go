package logschema

import "testing"

func TestValidate(t *testing.T) {
	err := Validate("swap_event", map[string]interface{}{
		"event":       "quote",
		"pair":        "SCRT/sETH",
		"from_amount": 100.0,
		"to_amount":   90.6,
		"price":       0.906,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err = Validate("swap_event", map[string]interface{}{
		"pair": "SCRT/sETH",
	})
	if err == nil {
		t.Fatalf("expected error for missing fields")
	}
	// 未注册的事件不校验
	if err := Validate("unknown_event", nil); err != nil {
		t.Fatalf("unexpected error for unknown event: %v", err)
	}
}

func TestKnownEvents(t *testing.T) {
	names := Known()
	if len(names) == 0 {
		t.Fatalf("expected non-empty schema list")
	}
	found := false
	for _, n := range names {
		if n == "sync_event" {
			found = true
		}
	}
	if !found {
		t.Fatalf("sync_event not found in schemas")
	}
}
