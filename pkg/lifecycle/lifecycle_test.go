/*
 * Copyright 2025 Cemaxecuter LLC.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package lifecycle

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukeswitz/DragonSync-Meshtastic/pkg/logger"
)

type callRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *callRecorder) add(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, call)
}

func (r *callRecorder) withPrefix(prefix string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []string

	for _, c := range r.calls {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}

	return out
}

type fakeService struct {
	name     string
	rec      *callRecorder
	startErr error
	stopErr  error
	blocking bool

	done     chan struct{}
	stopOnce sync.Once
}

func newFakeService(name string, rec *callRecorder) *fakeService {
	return &fakeService{
		name:     name,
		rec:      rec,
		blocking: true,
		done:     make(chan struct{}),
	}
}

func (s *fakeService) Start(ctx context.Context) error {
	s.rec.add("start:" + s.name)

	if s.startErr != nil {
		return s.startErr
	}

	if s.blocking {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		}
	}

	return nil
}

func (s *fakeService) Stop(context.Context) error {
	s.stopOnce.Do(func() { close(s.done) })
	s.rec.add("stop:" + s.name)

	return s.stopErr
}

func TestRunStopsServicesInReverseOrder(t *testing.T) {
	rec := &callRecorder{}
	first := newFakeService("first", rec)
	second := newFakeService("second", rec)

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)

	go func() { errCh <- Run(ctx, logger.NewTestLogger(), first, second) }()

	require.Eventually(t, func() bool {
		return len(rec.withPrefix("start:")) == 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err, "signal-style shutdown is not an error")
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	assert.Equal(t, []string{"stop:second", "stop:first"}, rec.withPrefix("stop:"))
}

func TestRunReturnsServiceFailure(t *testing.T) {
	errBoom := errors.New("radio gone")

	rec := &callRecorder{}
	healthy := newFakeService("healthy", rec)

	broken := newFakeService("broken", rec)
	broken.startErr = errBoom

	err := Run(context.Background(), logger.NewTestLogger(), healthy, broken)

	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)

	// Every service is stopped even when only one failed.
	assert.Equal(t, []string{"stop:broken", "stop:healthy"}, rec.withPrefix("stop:"))
}

func TestRunReportsStopFailureOnCleanShutdown(t *testing.T) {
	errStop := errors.New("port already closed")

	rec := &callRecorder{}
	svc := newFakeService("flaky", rec)
	svc.stopErr = errStop

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Run(ctx, logger.NewTestLogger(), svc)

	assert.ErrorIs(t, err, errStop)
}

func TestRunWithNoServices(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, Run(ctx, logger.NewTestLogger()))
}
