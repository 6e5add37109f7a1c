package events

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTopic(t *testing.T) {
	e := Event{Kind: KindHop, Tuner: "scanner"}
	if got, want := Topic("fmstream", e), "fmstream/scanner/hop"; got != want {
		t.Errorf("Topic() = %q, want %q", got, want)
	}
}

func TestEventJSON(t *testing.T) {
	e := Event{
		Kind:      KindSquelchOpen,
		Tuner:     "t0",
		Frequency: 100100000,
		Level:     42,
		Timestamp: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	data, err := json.Marshal(e)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"kind":"squelch_open","tuner":"t0","frequency":100100000,"level":42,"timestamp":"2024-01-02T03:04:05Z"}`
	if string(data) != want {
		t.Errorf("got %s\nwant %s", data, want)
	}
}

func TestRecorder(t *testing.T) {
	var r Recorder
	r.Publish(Event{Kind: KindHop})
	r.Publish(Event{Kind: KindRetune})
	got := r.Events()
	if len(got) != 2 || got[0].Kind != KindHop || got[1].Kind != KindRetune {
		t.Errorf("Events() = %+v", got)
	}
}
