package bus

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/attendance-backend/internal/realtime"
)

func TestLocalBusDeliversInOrder(t *testing.T) {
	b := NewLocalBus(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got []realtime.EventType
	if err := b.StartForwarder(ctx, func(ev realtime.Event) { got = append(got, ev.Type) }); err != nil {
		t.Fatalf("StartForwarder: %v", err)
	}
	school := uuid.New()
	for _, typ := range []realtime.EventType{realtime.EventMarked, realtime.EventRosterMarked} {
		ev, err := realtime.NewEvent(typ, school, time.Now(), realtime.BatchData{Total: 3, Succeeded: 3})
		if err != nil {
			t.Fatalf("NewEvent: %v", err)
		}
		if err := b.Publish(context.Background(), ev); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	if len(got) != 2 || got[0] != realtime.EventMarked || got[1] != realtime.EventRosterMarked {
		t.Fatalf("unexpected delivery: %v", got)
	}
}

func TestLocalBusRejectsAfterClose(t *testing.T) {
	b := NewLocalBus(nil)
	_ = b.Close()
	ev, _ := realtime.NewEvent(realtime.EventDeleted, uuid.New(), time.Now(), nil)
	if err := b.Publish(context.Background(), ev); err == nil {
		t.Fatalf("expected error after close")
	}
}

func TestEventPayloadRoundTrip(t *testing.T) {
	ev, err := realtime.NewEvent(realtime.EventLowAttendance, uuid.New(), time.Now(), realtime.LowAttendanceData{
		StudentName: "Student7 Test", AttendancePercentage: 62.5, Threshold: 75,
	})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	var data realtime.LowAttendanceData
	if err := ev.Decode(&data); err != nil || data.AttendancePercentage != 62.5 {
		t.Fatalf("Decode: %+v %v", data, err)
	}
}
