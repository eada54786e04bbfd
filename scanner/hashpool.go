package scanner

import (
	"errors"
	"sort"
	"sync"

	"imagededup/imageprocessor"
	"imagededup/logging"
	"imagededup/types"
)

// HashError pairs a record with the error its hash computation produced
type HashError struct {
	Record *types.ImageRecord
	Err    error
}

// hashTask computes one missing value and attaches it to its record
type hashTask func(record *types.ImageRecord) error

// EnsureContentHashes fills in the content hash of every record that does
// not have one yet, using a bounded worker pool. Records whose hash fails
// even after the retry are flagged and returned as errors, never dropped
// silently.
func EnsureContentHashes(records []*types.ImageRecord, hasher *imageprocessor.Hasher, workers int, progress func(done, total int)) []HashError {
	var pending []*types.ImageRecord
	for _, r := range records {
		if r.ContentHash == "" && !r.HashFailed {
			pending = append(pending, r)
		}
	}

	return runHashPool(pending, workers, progress, func(record *types.ImageRecord) error {
		digest, err := hasher.ContentHash(record.Path)
		if err != nil {
			record.HashFailed = true
			return err
		}
		record.ContentHash = digest
		return nil
	})
}

// EnsureFingerprints fills in the fingerprint of the given kind for every
// record that can still participate in perceptual layers. A decode failure
// permanently excludes the record from perceptual matching; it remains
// eligible for the exact layer.
func EnsureFingerprints(records []*types.ImageRecord, kind types.FingerprintKind, hasher *imageprocessor.Hasher, workers int, progress func(done, total int)) []HashError {
	var pending []*types.ImageRecord
	for _, r := range records {
		if r.DecodeFailed {
			continue
		}
		if _, ok := r.Fingerprint(kind); ok {
			continue
		}
		pending = append(pending, r)
	}

	return runHashPool(pending, workers, progress, func(record *types.ImageRecord) error {
		fp, err := hasher.Fingerprint(record.Path, kind)
		if err != nil {
			var decodeErr *types.DecodeError
			if errors.As(err, &decodeErr) {
				record.DecodeFailed = true
			}
			return err
		}
		record.SetFingerprint(kind, fp)
		return nil
	})
}

// runHashPool fans tasks out over a semaphore-bounded pool. Each record is
// written by exactly one worker, so no locking is needed on the records
// themselves; progress and error collection are serialized through a
// results channel.
func runHashPool(pending []*types.ImageRecord, workers int, progress func(done, total int), task hashTask) []HashError {
	if len(pending) == 0 {
		return nil
	}
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	resultsChan := make(chan HashError, len(pending))
	semaphore := make(chan struct{}, workers)

	for _, record := range pending {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(r *types.ImageRecord) {
			defer wg.Done()
			defer func() { <-semaphore }()

			err := task(r)
			resultsChan <- HashError{Record: r, Err: err}
		}(record)
	}

	// Consume results as they arrive so the buffer never blocks workers
	var failures []HashError
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		done := 0
		for result := range resultsChan {
			done++
			if result.Err != nil {
				failures = append(failures, result)
				logging.LogImageHashed(result.Record.Path, false, result.Err.Error())
			} else {
				logging.LogImageHashed(result.Record.Path, true, "")
			}
			if progress != nil {
				progress(done, len(pending))
			}
		}
	}()

	wg.Wait()
	close(resultsChan)
	<-consumerDone

	// Report failures in path order so repeated runs log identically
	sort.Slice(failures, func(i, j int) bool {
		return failures[i].Record.Path < failures[j].Record.Path
	})

	return failures
}
