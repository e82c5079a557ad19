package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/raspisms/golang_services/internal/core_domain"
	smsdomain "github.com/raspisms/golang_services/internal/sms_sending_service/domain"
)

func writeReceived(t *testing.T, dir string, messages ...core_domain.IncomingSMS) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, "received.jsonl"))
	require.NoError(t, err)
	defer f.Close()
	enc := json.NewEncoder(f)
	for _, m := range messages {
		require.NoError(t, enc.Encode(m))
	}
}

func TestReadPoller_PollOnce(t *testing.T) {
	phones := new(MockPhoneRepository)
	received := new(MockReceivedRepository)
	pub := new(MockPublisher)
	processor, root := newTestProcessor(t, phones, received, pub)
	poller := NewReadPoller(phones, processor, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))

	dirA, dirB := phoneDir(t, root, "a"), phoneDir(t, root, "b")
	writeReceived(t, dirA,
		core_domain.IncomingSMS{Origin: "+33611111111", Text: "one", At: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		core_domain.IncomingSMS{Origin: "+33622222222", Text: "two"},
	)
	writeReceived(t, dirB, core_domain.IncomingSMS{Origin: "+33633333333", Text: "three"})

	broken := filePhone(t, "phone-broken", "")
	broken.AdapterData = json.RawMessage(`{}`)
	phones.On("ListAll", mock.Anything).Return([]*smsdomain.Phone{
		filePhone(t, "phone-a", dirA),
		octopushPhone, // no read capability
		broken,
		filePhone(t, "phone-b", dirB),
	}, nil)
	received.On("Create", mock.Anything, mock.AnythingOfType("*core_domain.Received")).Return(nil)
	pub.On("Publish", mock.Anything, "sms.received.test", mock.Anything).Return(nil)

	assert.Equal(t, 3, poller.PollOnce(context.Background()))
	received.AssertNumberOfCalls(t, "Create", 3)

	// files are drained
	assert.Equal(t, 0, poller.PollOnce(context.Background()))
}

func TestReadPoller_PollOnce_ListFails(t *testing.T) {
	phones := new(MockPhoneRepository)
	received := new(MockReceivedRepository)
	processor, _ := newTestProcessor(t, phones, received, new(MockPublisher))
	poller := NewReadPoller(phones, processor, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	phones.On("ListAll", mock.Anything).Return(nil, errors.New("db down"))

	assert.Equal(t, 0, poller.PollOnce(context.Background()))
	received.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestReadPoller_RunStopsOnCancel(t *testing.T) {
	phones := new(MockPhoneRepository)
	phones.On("ListAll", mock.Anything).Return([]*smsdomain.Phone{}, nil).Maybe()
	processor, _ := newTestProcessor(t, phones, new(MockReceivedRepository), new(MockPublisher))
	poller := NewReadPoller(phones, processor, 5*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- poller.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after cancellation")
	}
}
