package kafka

import (
	"context"
	"errors"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	msgs      []kafka.Message
	err       error
	i         int
	committed []kafka.Message
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if r.i < len(r.msgs) {
		m := r.msgs[r.i]
		r.i++
		return m, nil
	}
	if r.err != nil {
		return kafka.Message{}, r.err
	}
	return kafka.Message{}, errors.New("eof")
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

func TestConsumer_Consume_CallsHandlerAndCommits(t *testing.T) {
	fr := &fakeReader{
		msgs: []kafka.Message{
			{Key: []byte("k1"), Value: []byte("v1")},
			{Key: []byte("k2"), Value: []byte("v2")},
		},
		err: errors.New("stop"),
	}
	c := newConsumerWithReader(fr)

	var got []string
	err := c.Consume(context.Background(), func(ctx context.Context, k, v []byte) error {
		got = append(got, string(k)+"="+string(v))
		return nil
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "fetch message")
	require.Equal(t, []string{"k1=v1", "k2=v2"}, got)
	require.Len(t, fr.committed, 2)
}

func TestConsumer_Consume_HandlerErrorStopsWithoutCommit(t *testing.T) {
	fr := &fakeReader{msgs: []kafka.Message{{Key: []byte("k"), Value: []byte("v")}}}
	c := newConsumerWithReader(fr)

	want := errors.New("handler failed")
	err := c.Consume(context.Background(), func(ctx context.Context, k, v []byte) error { return want })
	require.ErrorIs(t, err, want)
	require.Empty(t, fr.committed)
}

func TestConsumer_Consume_SkipCommits(t *testing.T) {
	fr := &fakeReader{
		msgs: []kafka.Message{{Key: []byte("bad"), Value: []byte("{")}},
		err:  errors.New("stop"),
	}
	c := newConsumerWithReader(fr)

	err := c.Consume(context.Background(), func(ctx context.Context, k, v []byte) error {
		return pkgerrors.Wrap(ErrSkip, "decode")
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "fetch message")
	require.Len(t, fr.committed, 1)
}

func TestConsumer_Close(t *testing.T) {
	fr := &fakeReader{}
	c := newConsumerWithReader(fr)
	require.NoError(t, c.Close())
	require.True(t, fr.closed)
}

func TestNewConsumer_Close(t *testing.T) {
	c := NewConsumer([]string{"localhost:0"}, "journey.events", "fleet-odometer")
	require.NotNil(t, c)
	require.NoError(t, c.Close())
}
