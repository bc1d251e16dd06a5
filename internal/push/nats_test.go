package push

import (
	"encoding/json"
	"testing"
	"time"
)

func TestStreamNameFromPrefix(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"providence.push": "PROVIDENCE_PUSH_EVENTS",
		"push":            "PUSH_EVENTS",
	}
	for prefix, want := range cases {
		if got := streamName(prefix); got != want {
			t.Fatalf("streamName(%q) = %q, want %q", prefix, got, want)
		}
	}
}

func TestEnvelopeWireShape(t *testing.T) {
	t.Parallel()

	body, err := json.Marshal(envelope{
		Event:          EventTreeDeleted,
		SubscriptionID: "sub-1",
		EmittedAt:      time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["event"] != "deleteTree" || decoded["subscriptionId"] != "sub-1" {
		t.Fatalf("envelope = %v", decoded)
	}
	if _, present := decoded["payload"]; present {
		t.Fatalf("empty payload must be omitted: %v", decoded)
	}
}
