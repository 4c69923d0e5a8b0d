/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mediator

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultPollInterval is the interval between two downloads of a Poller.
	DefaultPollInterval = 5 * time.Second

	maxPollBackoff = time.Minute
)

type downloader interface {
	DownloadMessages(ctx context.Context, connectionID string) (int, error)
}

// Poller downloads the messages queued by a mediator on an interval. Failed
// downloads are retried with exponential backoff.
type Poller struct {
	client       downloader
	connectionID string
	interval     time.Duration
	backoff      *backoff.ExponentialBackOff
}

// NewPoller returns a poller for the mediator at the other end of connectionID,
// the default mediator when connectionID is empty. A non-positive interval
// selects DefaultPollInterval.
func (c *Client) NewPoller(connectionID string, interval time.Duration) *Poller {
	return newPoller(c, connectionID, interval)
}

func newPoller(client downloader, connectionID string, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = interval
	b.MaxInterval = maxPollBackoff
	b.MaxElapsedTime = 0

	if b.MaxInterval < interval {
		b.MaxInterval = interval
	}

	return &Poller{
		client:       client,
		connectionID: connectionID,
		interval:     interval,
		backoff:      b,
	}
}

// Run polls until ctx is done. The first download happens immediately.
func (p *Poller) Run(ctx context.Context) error {
	p.backoff.Reset()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		wait := p.interval

		count, err := p.client.DownloadMessages(ctx, p.connectionID)
		if err != nil {
			wait = p.backoff.NextBackOff()

			logger.Warnf("message download failed, retrying in %s : %s", wait, err)
		} else {
			p.backoff.Reset()

			if count > 0 {
				logger.Debugf("downloaded %d messages", count)
			}
		}

		timer.Reset(wait)
	}
}
