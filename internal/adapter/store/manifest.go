// Package store persists the generation manifest: which headers were produced
// from which sources, and when. The manifest is what makes repeat runs cheap.
package store

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"
)

var bucketScripts = []byte("scripts")

// Record describes one generated header, keyed by the lowercase script stem.
type Record struct {
	SourcePath  string `json:"source_path"`
	SourceMod   int64  `json:"source_mod_time"`
	HeaderPath  string `json:"header_path"`
	GeneratedAt int64  `json:"generated_at"`
}

type Manifest struct {
	db *bbolt.DB
}

func NewManifest(path string) (*Manifest, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketScripts); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketScripts, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Manifest{db: db}, nil
}

// Get returns the record for a stem and whether one exists.
func (m *Manifest) Get(stem string) (Record, bool, error) {
	var rec Record
	found := false
	err := m.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketScripts).Get([]byte(stem))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		found = true
		return nil
	})
	return rec, found, err
}

func (m *Manifest) Put(stem string, rec Record) error {
	return m.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketScripts).Put([]byte(stem), data)
	})
}

// PutAll writes a batch of records in one transaction.
func (m *Manifest) PutAll(records map[string]Record) error {
	return m.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketScripts)
		for stem, rec := range records {
			data, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(stem), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (m *Manifest) All() (map[string]Record, error) {
	records := make(map[string]Record)
	err := m.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketScripts).ForEach(func(k, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			records[string(k)] = rec
			return nil
		})
	})
	return records, err
}

// Prune deletes records whose stem is not in the live set and returns how
// many were removed. Records for vanished sources would otherwise shadow a
// future reappearance of the script.
func (m *Manifest) Prune(live map[string]bool) (int, error) {
	pruned := 0
	err := m.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketScripts)
		var stale [][]byte
		if err := b.ForEach(func(k, v []byte) error {
			if !live[string(k)] {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		}); err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
			pruned++
		}
		return nil
	})
	return pruned, err
}

func (m *Manifest) Close() error {
	return m.db.Close()
}
