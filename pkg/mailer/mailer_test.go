package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu   sync.Mutex
	jobs []EmailJob
	err  error
}

func (p *fakePublisher) PublishJSON(_ context.Context, body any) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jobs = append(p.jobs, body.(EmailJob))
	return nil
}

func TestQueueDispatcher_Send(t *testing.T) {
	pub := &fakePublisher{}
	d := NewQueueDispatcher(pub)
	d.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }

	require.NoError(t, d.Send(context.Background(), "a@x.com", "Hello", "body"))
	require.Len(t, pub.jobs, 1)
	assert.Equal(t, EmailJob{To: "a@x.com", Subject: "Hello", Text: "body", QueuedAt: d.now()}, pub.jobs[0])
}

func TestQueueDispatcher_PublishFailureIsDeliveryFailure(t *testing.T) {
	boom := errors.New("channel closed")
	d := NewQueueDispatcher(&fakePublisher{err: boom})
	err := d.Send(context.Background(), "a@x.com", "Hello", "body")
	assert.ErrorIs(t, err, boom)

	err = d.Send(context.Background(), "", "Hello", "body")
	assert.ErrorIs(t, err, ErrInvalidJob)
}

func TestLogDispatcher(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})

	require.NoError(t, NewLogDispatcher(logger).Send(context.Background(), "a@x.com", "Hi", "there"))
	assert.Contains(t, buf.String(), `"to":"a@x.com"`)
	assert.Contains(t, buf.String(), `"subject":"Hi"`)
}

type recordingSender struct {
	calls []string
	err   error
}

func (s *recordingSender) Send(_ context.Context, to, subject, body string) error {
	s.calls = append(s.calls, to+"|"+subject+"|"+body)
	return s.err
}

func TestWorker_Handle(t *testing.T) {
	good, _ := json.Marshal(EmailJob{To: "a@x.com", Subject: "S", Text: "T"})

	t.Run("delivers", func(t *testing.T) {
		s := &recordingSender{}
		w := &Worker{Sender: s, Logger: logrus.New()}
		retry, err := w.Handle(context.Background(), good)
		require.NoError(t, err)
		assert.False(t, retry)
		assert.Equal(t, []string{"a@x.com|S|T"}, s.calls)
	})

	t.Run("bad json is dropped", func(t *testing.T) {
		w := &Worker{Sender: &recordingSender{}, Logger: logrus.New()}
		retry, err := w.Handle(context.Background(), []byte("{"))
		assert.ErrorIs(t, err, ErrInvalidJob)
		assert.False(t, retry)
	})

	t.Run("missing subject is dropped", func(t *testing.T) {
		body, _ := json.Marshal(EmailJob{To: "a@x.com"})
		w := &Worker{Sender: &recordingSender{}, Logger: logrus.New()}
		retry, err := w.Handle(context.Background(), body)
		assert.ErrorIs(t, err, ErrInvalidJob)
		assert.False(t, retry)
	})

	t.Run("send failure is retried", func(t *testing.T) {
		w := &Worker{Sender: &recordingSender{err: errors.New("502")}, Logger: logrus.New()}
		retry, err := w.Handle(context.Background(), good)
		assert.Error(t, err)
		assert.True(t, retry)
	})
}

func TestMailgun_Send(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/messages") {
			http.NotFound(w, r)
			return
		}
		got = map[string]string{
			"from":    r.FormValue("from"),
			"to":      r.FormValue("to"),
			"subject": r.FormValue("subject"),
			"text":    r.FormValue("text"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"<1@mg.natours.dev>","message":"Queued. Thank you."}`)
	}))
	defer srv.Close()

	m := NewMailgun("mg.natours.dev", "key-test", "Natours <no-reply@natours.dev>")
	m.APIBase = srv.URL + "/v3"
	require.True(t, m.Configured())

	require.NoError(t, m.Send(context.Background(), "a@x.com", "Subject", "Body"))
	assert.Equal(t, "a@x.com", got["to"])
	assert.Equal(t, "Subject", got["subject"])
	assert.Equal(t, "Body", got["text"])
	assert.Equal(t, "Natours <no-reply@natours.dev>", got["from"])

	assert.False(t, (&Mailgun{Domain: "d"}).Configured())
}
