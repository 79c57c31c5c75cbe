package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/foreseon/IntelXScan/internal/intelx"
	"github.com/foreseon/IntelXScan/internal/logging"
	"github.com/foreseon/IntelXScan/internal/model"
)

// fakeSearch answers per selector.
type fakeSearch struct {
	initiateErr map[string]error
	fetchErr    map[string]error
	records     map[string][]model.RawRecord
	calls       []string
}

func (f *fakeSearch) Initiate(_ context.Context, selector string) (intelx.JobID, error) {
	f.calls = append(f.calls, "initiate:"+selector)
	if err := f.initiateErr[selector]; err != nil {
		return "", err
	}
	return intelx.JobID("job-" + selector), nil
}

func (f *fakeSearch) FetchResults(_ context.Context, job intelx.JobID) ([]model.RawRecord, error) {
	f.calls = append(f.calls, "fetch:"+string(job))
	selector := string(job)[len("job-"):]
	if err := f.fetchErr[selector]; err != nil {
		return nil, err
	}
	return f.records[selector], nil
}

// memStore is an in-memory baseline.Store.
type memStore struct {
	mu      sync.Mutex
	data    map[string][]model.LeakRecord
	loadErr map[string]error
	saveErr error
	saves   int
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]model.LeakRecord{}, loadErr: map[string]error{}}
}

func (s *memStore) Load(_ context.Context, email string) ([]model.LeakRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadErr[email]; err != nil {
		return []model.LeakRecord{}, err
	}
	recs, ok := s.data[email]
	if !ok {
		return []model.LeakRecord{}, nil
	}
	return append([]model.LeakRecord{}, recs...), nil
}

func (s *memStore) Save(_ context.Context, email string, records []model.LeakRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.data[email] = append([]model.LeakRecord{}, records...)
	return nil
}

func (s *memStore) Close() error { return nil }

// lockingStore adds a Locker to memStore.
type lockingStore struct {
	*memStore
	lockErr  error
	locked   bool
	unlocked bool
}

func (s *lockingStore) Lock(context.Context) (func() error, error) {
	if s.lockErr != nil {
		return nil, s.lockErr
	}
	s.locked = true
	return func() error { s.unlocked = true; return nil }, nil
}

type fakeNotifier struct {
	sent    []string
	failOn  map[int]bool
	attempt int
}

func (n *fakeNotifier) Notify(_ context.Context, message string) error {
	n.attempt++
	if n.failOn[n.attempt] {
		return fmt.Errorf("%w: slack: rate_limited", model.ErrNotificationFailed)
	}
	n.sent = append(n.sent, message)
	return nil
}

type staticSource struct {
	emails []string
	err    error
}

func (s staticSource) Emails(context.Context) ([]string, error) {
	return s.emails, s.err
}

func raw(content, added string) model.RawRecord {
	return model.RawRecord{"linea": content, "item": map[string]any{"added": added}}
}

func testLogger() (*logging.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	lg := logging.NewWithWriter(&buf, false)
	lg.SetLevel(logging.LevelDebug)
	return lg, &buf
}

var errBoom = errors.New("boom")
