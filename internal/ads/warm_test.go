package ads

import (
	"context"
	"testing"
	"time"

	"github.com/netpulse/webclient/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestWarm_LoadsBeforeFirstRequest(t *testing.T) {
	fetcher := &countingFetcher{records: []model.AdSlotRecord{headerRecord}}
	r, _ := newTestResolver(t, fetcher)

	assert.True(t, r.Warm(context.Background(), time.Second))
	assert.Len(t, r.Records(), 1)

	assert.NotNil(t, r.Resolve(context.Background(), "header"))
	assert.Equal(t, 1, fetcher.Calls())
}

func TestWarm_Timeout(t *testing.T) {
	fetcher := &countingFetcher{
		records: []model.AdSlotRecord{headerRecord},
		gate:    make(chan struct{}),
	}
	r, _ := newTestResolver(t, fetcher)

	assert.False(t, r.Warm(context.Background(), 20*time.Millisecond))

	close(fetcher.gate)
	assert.Eventually(t, r.Loaded, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, fetcher.Calls())
}
