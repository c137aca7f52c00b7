package mqtt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/HerbHall/bambulink/internal/printer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestTryConnection(t *testing.T) {
	d := newFakeDialer()
	d.respond = func(cmd string) string {
		if cmd == "get_version" {
			return versionReport
		}
		return ""
	}

	res, err := TryConnection(context.Background(), testConfig(), d, time.Second, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, printer.ModelX1C, res.Model)
	assert.Equal(t, "01.08.02.00", res.SWVersion)

	s := d.next(t)
	assert.True(t, s.isClosed(), "probe session closed")
	assert.Equal(t, []string{"get_version"}, s.commands())
}

func TestTryConnection_Timeout(t *testing.T) {
	d := newFakeDialer()
	d.respond = func(string) string { return `{"print": {"mc_percent": 4}}` }

	_, err := TryConnection(context.Background(), testConfig(), d, 50*time.Millisecond, zaptest.NewLogger(t))
	assert.ErrorIs(t, err, ErrProbeTimeout)
	assert.True(t, d.next(t).isClosed())
}

func TestTryConnection_DialError(t *testing.T) {
	d := newFakeDialer(ErrAuthRefused)

	_, err := TryConnection(context.Background(), testConfig(), d, time.Second, zaptest.NewLogger(t))
	assert.ErrorIs(t, err, ErrAuthRefused)
	assert.Equal(t, 1, d.dialCount())
}

func TestTryConnection_PublishError(t *testing.T) {
	d := &publishFailDialer{}
	_, err := TryConnection(context.Background(), testConfig(), d, time.Second, zaptest.NewLogger(t))
	assert.ErrorIs(t, err, ErrPublishFailed)
	assert.True(t, d.sess.isClosed())
}

func TestClient_TryConnectionLeavesDeviceAlone(t *testing.T) {
	d := newFakeDialer()
	c := New(testConfig(), Options{Dialer: d})
	d.respond = func(cmd string) string {
		if cmd == "get_version" {
			return versionReport
		}
		return ""
	}

	_, err := c.TryConnection(context.Background(), time.Second)
	require.NoError(t, err)
	c.View(func(dev *printer.Device) {
		assert.Equal(t, printer.ModelUnknown, dev.Info.Model)
	})
	assert.False(t, c.Connected())
}

type publishFailDialer struct {
	sess *fakeSession
}

func (p *publishFailDialer) Dial(_ context.Context, onMessage func([]byte), onLost func(error)) (Session, error) {
	if p.sess != nil {
		return nil, errors.New("already dialed")
	}
	p.sess = &fakeSession{onMessage: onMessage, onLost: onLost, failPublish: true}
	return p.sess, nil
}
