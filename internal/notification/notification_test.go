package notification

import (
	"errors"
	"testing"
)

type fakeNotifier struct {
	name    string
	enabled bool
	err     error
	sent    []*Notification
}

func (f *fakeNotifier) Send(n *Notification) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, n)
	return nil
}

func (f *fakeNotifier) Name() string    { return f.name }
func (f *fakeNotifier) IsEnabled() bool { return f.enabled }

func TestManagerFansOutToEnabledProviders(t *testing.T) {
	on := &fakeNotifier{name: "on", enabled: true}
	off := &fakeNotifier{name: "off", enabled: false}

	m := NewManager(true)
	m.AddNotifier(on)
	m.AddNotifier(off)

	if err := m.Send(&Notification{Type: NotifyInfo, Message: "hi"}); err != nil {
		t.Fatalf("Send() error: %v", err)
	}

	if len(on.sent) != 1 {
		t.Errorf("enabled provider got %d notifications, want 1", len(on.sent))
	}
	if len(off.sent) != 0 {
		t.Errorf("disabled provider got %d notifications, want 0", len(off.sent))
	}
}

func TestManagerDisabledIsNoop(t *testing.T) {
	n := &fakeNotifier{name: "n", enabled: true}
	m := NewManager(false)
	m.AddNotifier(n)

	if err := m.Send(&Notification{Type: NotifyInfo}); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if len(n.sent) != 0 {
		t.Errorf("disabled manager should not deliver, got %d", len(n.sent))
	}
}

func TestManagerReportsProviderFailure(t *testing.T) {
	boom := errors.New("webhook down")
	failing := &fakeNotifier{name: "bad", enabled: true, err: boom}
	healthy := &fakeNotifier{name: "good", enabled: true}

	m := NewManager(true)
	m.AddNotifier(failing)
	m.AddNotifier(healthy)

	if err := m.Send(&Notification{Type: NotifyError}); !errors.Is(err, boom) {
		t.Errorf("Send() error = %v, want %v", err, boom)
	}
	if len(healthy.sent) != 1 {
		t.Error("one provider failing must not block the others")
	}
}

func TestNotifyPayoutCompletedFields(t *testing.T) {
	n := &fakeNotifier{name: "n", enabled: true}
	m := NewManager(true)
	m.AddNotifier(n)

	m.NotifyPayoutCompleted("worker-1", "earn-1", 47.50)

	if len(n.sent) != 1 {
		t.Fatalf("got %d notifications, want 1", len(n.sent))
	}
	got := n.sent[0]
	if got.Type != NotifyPayoutCompleted {
		t.Errorf("type = %s, want %s", got.Type, NotifyPayoutCompleted)
	}
	if got.WorkerID != "worker-1" || got.EarningID != "earn-1" || got.Amount != 47.50 {
		t.Errorf("notification fields wrong: %+v", got)
	}
}

func TestNotifyPayoutBlockedMentionsReason(t *testing.T) {
	n := &fakeNotifier{name: "n", enabled: true}
	m := NewManager(true)
	m.AddNotifier(n)

	m.NotifyPayoutBlocked("worker-1", "earn-1", "no payout account on file")

	if len(n.sent) != 1 {
		t.Fatalf("got %d notifications, want 1", len(n.sent))
	}
	if n.sent[0].Type != NotifyPayoutBlocked {
		t.Errorf("type = %s, want %s", n.sent[0].Type, NotifyPayoutBlocked)
	}
}
