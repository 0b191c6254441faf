// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package calibration

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/faultline/faultline/internal/hypothesis"
)

// BadgerDB key prefixes for the calibration store.
const (
	keyPrefixRecord   = "calib:record:"
	keyPrefixSKUIndex = "calib:sku-index:"
	keyPrefixFP       = "calib:fp:"
)

// DefaultMinRefutations is the number of independent Negative-labeled
// experiments a (fingerprint, hazard class) pair must accumulate before
// IsKnownFalsePositive reports it as suppressible.
const DefaultMinRefutations = 3

// Quality and power gates a label must clear to remain trusted; below
// either threshold the assigned label is downgraded to Unlabeled.
const (
	minLabelQuality = 0.60
	minPower        = 0.80
)

// Label quality penalties for environment controls left unpinned, and the
// placeholder confound-risk discount applied to every experiment. A real
// confound estimate would diff treatment/control disassembly size; nothing
// in this store's inputs carries that, so a fixed discount stands in.
const (
	envPenaltyNoTurboDisable  = 0.15
	envPenaltyNonPerformance  = 0.10
	envPenaltyNoCoresRecorded = 0.20
	confoundRiskPlaceholder   = 0.05
)

// Store persists LabeledRecords and a false-positive registry in BadgerDB,
// keyed by hazard class so a rule's calibration lookup never scans records
// belonging to an unrelated hazard.
//
// Description:
//
//	Wraps an opened BadgerDB instance with the ingest, query, and
//	false-positive-registry operations a calibration gate needs. The
//	Store owns the *badger.DB it wraps; Close closes that database.
//
// Thread Safety:
//
//	Safe for concurrent use. BadgerDB handles its own concurrency control.
type Store struct {
	db             *badger.DB
	logger         *slog.Logger
	minRefutations uint32
}

// Option configures a Store at Open time.
type Option func(*Store)

// WithMinRefutations overrides DefaultMinRefutations.
func WithMinRefutations(n uint32) Option {
	return func(s *Store) { s.minRefutations = n }
}

// WithLogger overrides the default slog.Default() logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// Open opens (creating if absent) a BadgerDB at path and returns a Store
// backed by it. The caller must call Close when done.
func Open(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("calibration: store path must not be empty")
	}

	db, err := badger.Open(badger.DefaultOptions(path).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("calibration: opening badger at %q: %w", path, err)
	}
	return newStore(db, opts...), nil
}

// newStore wraps an already-opened *badger.DB, used directly by tests that
// want an in-memory instance.
func newStore(db *badger.DB, opts ...Option) *Store {
	s := &Store{db: db, logger: slog.Default(), minRefutations: DefaultMinRefutations}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close releases the underlying BadgerDB handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// validateSchema rejects an ExperimentResult missing the fields every
// downstream consumer assumes are present.
func validateSchema(result ExperimentResult) error {
	if result.FindingID == "" {
		return fmt.Errorf("finding id must not be empty")
	}
	if result.HypothesisID == "" {
		return fmt.Errorf("hypothesis id must not be empty")
	}
	if result.SchemaVersion == "" {
		return fmt.Errorf("schema version must not be empty")
	}
	if result.WarmupIterations == 0 {
		return fmt.Errorf("warmup iterations must be nonzero")
	}
	if result.MeasurementIterations == 0 {
		return fmt.Errorf("measurement iterations must be nonzero")
	}
	if result.EnvState.CPUModel == "" {
		return fmt.Errorf("environment cpu model must not be empty")
	}
	return nil
}

// assignLabel maps a raw experiment verdict to a training label.
func assignLabel(result ExperimentResult) LabelValue {
	switch result.Verdict {
	case hypothesis.Confirmed:
		return Positive
	case hypothesis.Refuted:
		return Negative
	case hypothesis.Confounded:
		return Excluded
	default: // Pending, Inconclusive
		return Unlabeled
	}
}

// computeLabelQuality scores how much an assigned label should be trusted,
// discounting for statistical power and for environment controls the
// measurement left unpinned.
func computeLabelQuality(result ExperimentResult) float64 {
	powerFactor := result.Power
	if powerFactor > 1.0 {
		powerFactor = 1.0
	}

	envQuality := 1.0
	if !result.EnvState.TurboDisabled {
		envQuality -= envPenaltyNoTurboDisable
	}
	if result.EnvState.Governor != "performance" {
		envQuality -= envPenaltyNonPerformance
	}
	if len(result.EnvState.CoresUsed) == 0 {
		envQuality -= envPenaltyNoCoresRecorded
	}
	if envQuality < 0 {
		envQuality = 0
	}

	return powerFactor * envQuality * (1.0 - confoundRiskPlaceholder)
}

// Ingest validates result, assigns and quality-gates its label, and
// persists the resulting LabeledRecord. A Negative label additionally
// increments the false-positive registry for (featureVector, hazardClass).
//
// Inputs:
//
//	result - The raw experiment outcome. Must pass validateSchema.
//	featureVector - The hazard's numeric feature vector at measurement time.
//	hazardClass - Which hazard taxonomy bucket this experiment targeted.
//
// Outputs:
//
//	*LabeledRecord - The stored record, or nil if result failed schema
//	validation.
//	error - Non-nil only on a BadgerDB I/O failure; a rejected schema
//	returns (nil, nil) since that is an expected, not exceptional, outcome.
func (s *Store) Ingest(result ExperimentResult, featureVector []float64, hazardClass hypothesis.HazardClass) (*LabeledRecord, error) {
	if err := validateSchema(result); err != nil {
		s.logger.Warn("calibration: rejecting experiment result", slog.String("finding_id", result.FindingID), slog.Any("error", err))
		return nil, nil
	}

	label := assignLabel(result)
	quality := computeLabelQuality(result)

	if quality < minLabelQuality && label != Excluded {
		label = Unlabeled
	}
	if result.Power < minPower && label == Negative {
		label = Unlabeled
	}

	rec := &LabeledRecord{
		FindingID:          result.FindingID,
		HypothesisID:       result.HypothesisID,
		HazardClass:        hazardClass,
		FeatureVector:      featureVector,
		Label:              label,
		LabelQuality:       quality,
		EffectSize:         result.EffectSizeD,
		PValue:             result.PValue,
		SKUFamily:          result.EnvState.SKUFamily,
		KernelVersion:      result.EnvState.Kernel,
		SchemaVersion:      result.SchemaVersion,
		IngestionTimestamp: result.IngestionTimestamp,
	}

	recJSON, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("calibration: marshaling labeled record: %w", err)
	}

	recordKey := recordKeyFor(hazardClass, result.FindingID, result.HypothesisID)
	skuIndexKey := keyPrefixSKUIndex + result.EnvState.SKUFamily + ":" + result.FindingID + ":" + result.HypothesisID

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(recordKey), recJSON); err != nil {
			return fmt.Errorf("storing labeled record: %w", err)
		}
		if err := txn.Set([]byte(skuIndexKey), []byte(recordKey)); err != nil {
			return fmt.Errorf("storing sku index: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("calibration: writing record to badger: %w", err)
	}

	if label == Negative {
		if err := s.RegisterFalsePositive(featureVector, hazardClass, "refuted by measurement "+result.FindingID); err != nil {
			return nil, fmt.Errorf("calibration: registering refutation: %w", err)
		}
	}

	s.logger.Info("calibration record ingested",
		slog.String("finding_id", rec.FindingID),
		slog.String("hazard_class", hazardClass.String()),
		slog.String("label", label.String()),
		slog.Float64("label_quality", quality),
	)

	return rec, nil
}

// QueryByHazardClass returns every LabeledRecord stored for hc.
func (s *Store) QueryByHazardClass(hc hypothesis.HazardClass) ([]LabeledRecord, error) {
	var out []LabeledRecord
	prefix := keyPrefixRecord + hazardKeyPart(hc) + ":"

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			var rec LabeledRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				s.logger.Warn("calibration: skipping corrupt record", slog.String("key", string(it.Item().Key())))
				continue
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("calibration: querying by hazard class: %w", err)
	}
	return out, nil
}

// QueryBySKU returns every LabeledRecord whose SKUFamily matches sku.
func (s *Store) QueryBySKU(sku string) ([]LabeledRecord, error) {
	var keys []string
	prefix := keyPrefixSKUIndex + sku + ":"

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				keys = append(keys, string(val))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("calibration: querying sku index: %w", err)
	}

	var out []LabeledRecord
	err = s.db.View(func(txn *badger.Txn) error {
		for _, key := range keys {
			item, err := txn.Get([]byte(key))
			if err != nil {
				continue
			}
			var rec LabeledRecord
			err = item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				continue
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("calibration: resolving sku records: %w", err)
	}
	return out, nil
}

// RecordCount returns the total number of labeled records in the store.
func (s *Store) RecordCount() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefixRecord)
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(keyPrefixRecord)); it.ValidForPrefix([]byte(keyPrefixRecord)); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("calibration: counting records: %w", err)
	}
	return count, nil
}

// IsKnownFalsePositive reports whether (features, hc) has accumulated at
// least the store's configured minimum number of independent refutations.
func (s *Store) IsKnownFalsePositive(features []float64, hc hypothesis.HazardClass) (bool, error) {
	entry, err := s.lookupFalsePositive(features, hc)
	if err != nil {
		return false, err
	}
	if entry == nil {
		return false, nil
	}
	return entry.RefutationCount >= s.minRefutations, nil
}

// RegisterFalsePositive records an independent refutation of (features, hc),
// creating the registry entry if this is the first refutation seen for it.
func (s *Store) RegisterFalsePositive(features []float64, hc hypothesis.HazardClass, reason string) error {
	key := falsePositiveKeyFor(features, hc)

	entry, err := s.lookupFalsePositive(features, hc)
	if err != nil {
		return err
	}
	if entry == nil {
		entry = &falsePositiveEntry{Features: features, HazardClass: hc}
	}
	entry.RefutationCount++
	entry.Reason = reason

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("calibration: marshaling false positive entry: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("calibration: writing false positive entry: %w", err)
	}
	return nil
}

func (s *Store) lookupFalsePositive(features []float64, hc hypothesis.HazardClass) (*falsePositiveEntry, error) {
	key := falsePositiveKeyFor(features, hc)

	var entry *falsePositiveEntry
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var e falsePositiveEntry
			if err := json.Unmarshal(val, &e); err != nil {
				return err
			}
			entry = &e
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("calibration: looking up false positive entry: %w", err)
	}
	return entry, nil
}

func recordKeyFor(hc hypothesis.HazardClass, findingID, hypothesisID string) string {
	return keyPrefixRecord + hazardKeyPart(hc) + ":" + findingID + ":" + hypothesisID
}

func falsePositiveKeyFor(features []float64, hc hypothesis.HazardClass) string {
	return keyPrefixFP + hazardKeyPart(hc) + ":" + fingerprintHash(features)
}

func hazardKeyPart(hc hypothesis.HazardClass) string {
	return strconv.Itoa(int(hc))
}

// fingerprintHash returns a stable, hex-encoded identity for a feature
// vector, independent of floating-point representation drift across a
// fixed decimal precision.
func fingerprintHash(features []float64) string {
	var b strings.Builder
	for i, f := range features {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(f, 'f', 6, 64))
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])[:16]
}
