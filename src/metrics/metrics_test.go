package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordDrop(t *testing.T) {
	before := testutil.ToFloat64(TicksDropped.WithLabelValues(DropDecode))
	RecordDrop(DropDecode)
	RecordDrop(DropDecode)
	assert.Equal(t, before+2, testutil.ToFloat64(TicksDropped.WithLabelValues(DropDecode)))
}

func TestFeedStateLifecycle(t *testing.T) {
	SetFeedState("m2|1:2885", 4)
	assert.Equal(t, 4.0, testutil.ToFloat64(FeedSessionState.WithLabelValues("m2|1:2885")))

	RecordReconnect("m2|1:2885")
	assert.Equal(t, 1.0, testutil.ToFloat64(Reconnects.WithLabelValues("m2|1:2885")))

	ForgetFeed("m2|1:2885")
	assert.Equal(t, 0, testutil.CollectAndCount(FeedSessionState))
}
