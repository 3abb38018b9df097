// internal/ledger/wsfeed/feed.go
//
// Package wsfeed implements the ledger event feed over a websocket gateway.
// Each Subscribe opens one stream for one event name; frames are JSON.
package wsfeed

import (
	"context"
	"fmt"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/liarspoker/internal/ledger"
	"github.com/jason-s-yu/liarspoker/internal/models"
)

// Feed dials a websocket gateway for event streams. Implements ledger.Feed.
type Feed struct {
	url string
	log *logrus.Logger
}

// New creates a feed against the gateway at url.
func New(url string, log *logrus.Logger) *Feed {
	return &Feed{url: url, log: log}
}

// Subscribe opens a stream for the named event. The returned channel closes
// when the stream drops; the caller (the subscription registry) is
// responsible for resubscribing. stop closes the stream and is safe to call
// more than once.
func (f *Feed) Subscribe(ctx context.Context, name models.EventName) (<-chan models.RawEvent, func(), error) {
	dialURL := fmt.Sprintf("%s?event=%s", f.url, name)

	conn, _, err := websocket.Dial(ctx, dialURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: dial %s: %v", ledger.ErrTransport, name, err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	out := make(chan models.RawEvent, 16)

	stop := func() {
		cancel()
		conn.Close(websocket.StatusNormalClosure, "unsubscribed")
	}

	go func() {
		defer close(out)
		defer conn.Close(websocket.StatusInternalError, "reader finished")

		for {
			var raw models.RawEvent
			if err := wsjson.Read(streamCtx, conn, &raw); err != nil {
				if streamCtx.Err() == nil {
					f.log.WithFields(logrus.Fields{
						"event": name,
						"error": err,
					}).Warn("event stream dropped")
				}
				return
			}
			if raw.Name == "" {
				raw.Name = name
			}

			select {
			case out <- raw:
			case <-streamCtx.Done():
				return
			}
		}
	}()

	return out, stop, nil
}
