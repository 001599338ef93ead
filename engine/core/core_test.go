package core

import (
	"testing"
	"time"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"debug", LogLevelDebug, false},
		{"INFO", LogLevelInfo, false},
		{"", LogLevelInfo, false},
		{"warning", LogLevelWarn, false},
		{"error", LogLevelError, false},
		{"loud", LogLevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLogLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLogLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestMetricsRollingAverage(t *testing.T) {
	stage := "test-rolling"
	for i := 0; i < AVG_COUNT; i++ {
		MetricsRecord(stage, time.Millisecond)
	}
	for i := 0; i < AVG_COUNT; i++ {
		MetricsRecord(stage, 3*time.Millisecond)
	}
	if got := MetricsAverage(stage); got != 3*time.Millisecond {
		t.Errorf("MetricsAverage() = %s, want 3ms", got)
	}
	if got := MetricsCount(stage); got != uint64(2*AVG_COUNT) {
		t.Errorf("MetricsCount() = %d, want %d", got, 2*AVG_COUNT)
	}
	if got := MetricsAverage("never-recorded"); got != 0 {
		t.Errorf("MetricsAverage(unknown) = %s, want 0", got)
	}
}

func TestEventFireStopsAtFirstHandler(t *testing.T) {
	EventInitialize()
	defer EventShutdown()

	var calls []string
	first := func(code SystemEventCode, sender, listener interface{}, data EventContext) bool {
		calls = append(calls, "first:"+data.Path)
		return true
	}
	second := func(code SystemEventCode, sender, listener interface{}, data EventContext) bool {
		calls = append(calls, "second")
		return false
	}

	if !EventRegister(EVENT_CODE_ASSET_CHANGED, "a", first) {
		t.Fatal("EventRegister(first) returned false")
	}
	if EventRegister(EVENT_CODE_ASSET_CHANGED, "a", first) {
		t.Fatal("duplicate registration should be rejected")
	}
	EventRegister(EVENT_CODE_ASSET_CHANGED, "b", second)

	if !EventFire(EVENT_CODE_ASSET_CHANGED, nil, EventContext{Path: "x.png"}) {
		t.Fatal("EventFire() = false, want handled")
	}
	if len(calls) != 1 || calls[0] != "first:x.png" {
		t.Fatalf("calls = %v", calls)
	}

	if !EventUnregister(EVENT_CODE_ASSET_CHANGED, "a", first) {
		t.Fatal("EventUnregister(first) returned false")
	}
	EventFire(EVENT_CODE_ASSET_CHANGED, nil, EventContext{})
	if len(calls) != 2 || calls[1] != "second" {
		t.Fatalf("calls after unregister = %v", calls)
	}
}

func TestClockElapsed(t *testing.T) {
	c := NewClock()
	c.Update()
	if c.Elapsed() != 0 {
		t.Fatalf("unstarted clock elapsed = %s", c.Elapsed())
	}
	c.Start()
	time.Sleep(time.Millisecond)
	c.Stop()
	if c.Elapsed() <= 0 {
		t.Fatalf("elapsed = %s, want > 0", c.Elapsed())
	}
}

func TestInputProcessKey(t *testing.T) {
	EventInitialize()
	defer EventShutdown()
	if err := InputInitialize(); err != nil {
		t.Fatal(err)
	}
	defer InputShutdown()

	var pressed, released []KeyCode
	onKey := func(code SystemEventCode, sender, listener interface{}, data EventContext) bool {
		key := data.Data.(*KeyEvent).KeyCode
		if code == EVENT_CODE_KEY_PRESSED {
			pressed = append(pressed, key)
		} else {
			released = append(released, key)
		}
		return true
	}
	EventRegister(EVENT_CODE_KEY_PRESSED, t, onKey)
	EventRegister(EVENT_CODE_KEY_RELEASED, t, onKey)

	InputProcessKey(KEY_R, true)
	InputProcessKey(KEY_R, true)
	if !InputIsKeyDown(KEY_R) || InputWasKeyDown(KEY_R) {
		t.Errorf("after press: down %v, was down %v", InputIsKeyDown(KEY_R), InputWasKeyDown(KEY_R))
	}
	InputUpdate()
	InputProcessKey(KEY_R, false)
	if !InputIsKeyUp(KEY_R) || !InputWasKeyDown(KEY_R) {
		t.Errorf("after release: up %v, was down %v", InputIsKeyUp(KEY_R), InputWasKeyDown(KEY_R))
	}
	if len(pressed) != 1 || len(released) != 1 || pressed[0] != KEY_R {
		t.Errorf("pressed %v, released %v", pressed, released)
	}
}
