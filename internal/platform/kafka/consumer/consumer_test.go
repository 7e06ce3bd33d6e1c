package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/twmb/franz-go/pkg/kgo"
)

type recordID struct {
	partition int32
	offset    int64
}

type scriptedHandler struct {
	fail    map[recordID]bool
	handled []recordID
}

func (h *scriptedHandler) Handle(_ context.Context, msg *Message) error {
	id := recordID{partition: msg.Partition, offset: msg.Offset}
	h.handled = append(h.handled, id)
	if h.fail[id] {
		return errors.New("reconcile unavailable")
	}
	return nil
}

func record(partition int32, offset int64) *kgo.Record {
	return &kgo.Record{Topic: "lab-results", Partition: partition, Offset: offset}
}

func testConsumer(h Handler) *Consumer {
	return &Consumer{handler: h, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func ids(records []*kgo.Record) []recordID {
	out := make([]recordID, 0, len(records))
	for _, r := range records {
		out = append(out, recordID{partition: r.Partition, offset: r.Offset})
	}
	return out
}

func TestHandleRecordsCommitsAll(t *testing.T) {
	h := &scriptedHandler{}
	c := testConsumer(h)

	done := c.handleRecords(context.Background(), []*kgo.Record{
		record(0, 10), record(0, 11), record(1, 3),
	})

	assert.Equal(t, []recordID{{0, 10}, {0, 11}, {1, 3}}, ids(done))
}

func TestHandleRecordsParksPartitionAfterFailure(t *testing.T) {
	h := &scriptedHandler{fail: map[recordID]bool{{0, 10}: true}}
	c := testConsumer(h)

	// A later success on the same partition must not be committed: that
	// would move the committed offset past the failed record and the broker
	// would never redeliver it.
	done := c.handleRecords(context.Background(), []*kgo.Record{
		record(0, 10), record(0, 11),
	})

	assert.Empty(t, done)
	assert.Equal(t, []recordID{{0, 10}}, h.handled, "records behind the failure stay untouched")
}

func TestHandleRecordsFailureIsScopedToItsPartition(t *testing.T) {
	h := &scriptedHandler{fail: map[recordID]bool{{0, 10}: true}}
	c := testConsumer(h)

	done := c.handleRecords(context.Background(), []*kgo.Record{
		record(0, 10), record(0, 11), record(1, 3),
	})

	assert.Equal(t, []recordID{{1, 3}}, ids(done), "other partitions keep progressing")
}
