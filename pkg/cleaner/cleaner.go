// Package cleaner reconciles the object store against the upload registry.
// Objects whose keys have no registry row are orphans: uploads that were
// presigned and stored but never completed, or whose records were deleted.
package cleaner

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"k8s.io/klog/v2"

	"github.com/otalab/spaces/dao/query"
	"github.com/otalab/spaces/pkg/objstore"
)

// DefaultGraceHours is how long an unregistered object is left alone
// before the sweep reclaims it. A client may still be uploading or about
// to complete.
const DefaultGraceHours = 24

type SweepResult struct {
	Scanned int
	Orphans int
	Deleted int
	Skipped int
}

type Sweeper struct {
	store objstore.Client
	grace time.Duration
}

func NewSweeper(store objstore.Client, graceHours int) *Sweeper {
	if graceHours <= 0 {
		graceHours = DefaultGraceHours
	}
	return &Sweeper{
		store: store,
		grace: time.Duration(graceHours) * time.Hour,
	}
}

// Sweep lists every stored object under the upload prefix, drops the ones
// the registry knows about, and deletes the rest once they are older than
// the grace window. The upload age comes from the timestamp embedded in
// the key, so no extra store round trip is needed per object.
func (s *Sweeper) Sweep(ctx context.Context) (*SweepResult, error) {
	keys, err := s.store.ListKeys(ctx, objstore.KeyPrefix)
	if err != nil {
		return nil, err
	}
	registered, err := query.ListAllKeys(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(registered))
	for _, k := range registered {
		known[k] = true
	}

	result := &SweepResult{Scanned: len(keys)}
	cutoff := time.Now().Add(-s.grace)
	for _, key := range keys {
		if known[key] {
			continue
		}
		result.Orphans++
		parts, ok := objstore.ParseKey(key)
		if !ok {
			// Not one of ours. Leave it and let an operator decide.
			klog.Warningf("sweep: unparsable key %q left in place", key)
			result.Skipped++
			continue
		}
		if time.UnixMilli(parts.Timestamp).After(cutoff) {
			result.Skipped++
			continue
		}
		if err := s.store.Delete(ctx, key); err != nil {
			klog.Errorf("sweep: delete %s: %v", key, err)
			result.Skipped++
			continue
		}
		result.Deleted++
	}
	return result, nil
}

type CronManager struct {
	sweeper *Sweeper
	cron    *cron.Cron
	mu      sync.Mutex
}

func NewCronManager(sweeper *Sweeper) *CronManager {
	return &CronManager{
		sweeper: sweeper,
		cron:    cron.New(cron.WithLocation(time.Local)),
	}
}

// Start schedules the sweep with the given cron expression and launches
// the scheduler.
func (m *CronManager) Start(schedule string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		result, err := m.sweeper.Sweep(ctx)
		if err != nil {
			klog.Errorf("orphan sweep failed: %v", err)
			return
		}
		klog.Infof("orphan sweep: scanned=%d orphans=%d deleted=%d skipped=%d",
			result.Scanned, result.Orphans, result.Deleted, result.Skipped)
	})
	if err != nil {
		return err
	}
	m.cron.Start()
	return nil
}

func (m *CronManager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cron.Stop()
}
