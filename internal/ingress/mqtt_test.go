package ingress

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/config"
	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/models"
)

type recorded struct {
	label string
	ts    int64
}

type fakeRecorder struct {
	calls []recorded
	err   error
}

func (f *fakeRecorder) Record(_ context.Context, label string, unix int64) (*models.Heartbeat, error) {
	f.calls = append(f.calls, recorded{label: label, ts: unix})
	if f.err != nil {
		return nil, f.err
	}
	return &models.Heartbeat{Label: label, Timestamp: time.Unix(unix, 0)}, nil
}

func TestHandle_ValidPayloads(t *testing.T) {
	rec := &fakeRecorder{}
	sub := NewMQTTSubscriber(config.MQTTConfig{Topic: "power/heartbeat"}, rec, nil)
	ctx := context.Background()

	require.NoError(t, sub.Handle(ctx, []byte(`{"timestamp":1700000000,"label":"pi"}`)))
	require.NoError(t, sub.Handle(ctx, []byte(`{"timestamp":"1700000010"}`)))

	require.Len(t, rec.calls, 2)
	assert.Equal(t, recorded{label: "pi", ts: 1_700_000_000}, rec.calls[0])
	// Missing labels are defaulted by the recorder.
	assert.Equal(t, recorded{label: "", ts: 1_700_000_010}, rec.calls[1])
}

func TestHandle_RejectsBadPayloads(t *testing.T) {
	rec := &fakeRecorder{}
	sub := NewMQTTSubscriber(config.MQTTConfig{}, rec, nil)

	for _, payload := range []string{
		`not json`,
		`{}`,
		`{"timestamp":1.5}`,
		`{"timestamp":"soon"}`,
		`{"timestamp":-4}`,
		`{"timestamp":null}`,
	} {
		err := sub.Handle(context.Background(), []byte(payload))
		assert.ErrorIs(t, err, errBadPayload, payload)
	}
	assert.Empty(t, rec.calls)
}

func TestHandle_PropagatesStoreErrors(t *testing.T) {
	boom := errors.New("db down")
	sub := NewMQTTSubscriber(config.MQTTConfig{}, &fakeRecorder{err: boom}, nil)
	err := sub.Handle(context.Background(), []byte(`{"timestamp":1700000000}`))
	assert.ErrorIs(t, err, boom)
}

func TestStart_RequiresRecorder(t *testing.T) {
	sub := NewMQTTSubscriber(config.MQTTConfig{Broker: "tcp://127.0.0.1:1"}, nil, nil)
	assert.Error(t, sub.Start(context.Background()))
	sub.Stop()
}
