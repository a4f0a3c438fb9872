package event

import "testing"

func TestStartedShape(t *testing.T) {
	t.Parallel()
	ev := Started("r1", "gpt2", "small", 3)

	if ev.Type != TypeStartedV1 {
		t.Errorf("unexpected type %q", ev.Type)
	}
	if ev.RequestID != ev.RunID {
		t.Error("request_id must equal run_id")
	}
	if ev.Payload["status"] != "running" {
		t.Errorf("expected self-describing status, got %v", ev.Payload["status"])
	}
	if ev.Terminal() {
		t.Error("started must not be terminal")
	}
}

func TestTerminalEvents(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		ev       *Event
		terminal bool
		status   string
	}{
		{"progress", Progress("r1", 1, 3, 10, 2.5), false, "running"},
		{"completed", Completed("r1", 1.9, 6.7, "data-bank:file-1"), true, "completed"},
		{"failed", Failed("r1", "system", "oom", "failed"), true, "failed"},
		{"canceled", Failed("r1", "user", "canceled by user", "canceled"), true, "canceled"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if tt.ev.Terminal() != tt.terminal {
				t.Errorf("Terminal() = %v, want %v", tt.ev.Terminal(), tt.terminal)
			}
			if tt.ev.Payload["status"] != tt.status {
				t.Errorf("status = %v, want %q", tt.ev.Payload["status"], tt.status)
			}
			if tt.ev.Version != SchemaVersion {
				t.Errorf("version = %q, want %q", tt.ev.Version, SchemaVersion)
			}
		})
	}
}

func TestDataFlattensEnvelope(t *testing.T) {
	t.Parallel()
	ev := Progress("r1", 1, 3, 10, 2.5)
	data := ev.Data()

	if data["run_id"] != "r1" || data["request_id"] != "r1" {
		t.Errorf("missing correlation fields: %v", data)
	}
	if data["version"] != SchemaVersion {
		t.Errorf("missing version: %v", data)
	}
	if data["loss"] != 2.5 {
		t.Errorf("payload not flattened: %v", data)
	}
	// Data must not alias the payload map.
	data["loss"] = 0.0
	if ev.Payload["loss"] != 2.5 {
		t.Error("Data() mutated the event payload")
	}
}
