package persistence

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/markusressel/sensormon/internal/ui"
	bolt "go.etcd.io/bbolt"
)

const (
	BucketThresholdOverrides = "thresholdOverrides"
)

// Persistence stores externally written threshold trip points, so a
// changed threshold survives daemon restarts and configuration rebuilds.
type Persistence interface {
	Init() error

	LoadThresholdOverrides(sensorName string) (map[string]float64, error)
	SaveThresholdOverride(sensorName string, property string, value float64) error
	DeleteThresholdOverrides(sensorName string) error
}

type persistence struct {
	dbPath string
}

func NewPersistence(dbPath string) Persistence {
	p := &persistence{
		dbPath: dbPath,
	}
	return p
}

func (p persistence) Init() (err error) {
	parentDir := filepath.Dir(p.dbPath)
	_, err = os.Stat(parentDir)
	if errors.Is(err, os.ErrNotExist) {
		ui.Info("Creating directory for db: %s", parentDir)
		err = os.MkdirAll(parentDir, 0755)
		if err != nil {
			return err
		}
	}
	return nil
}

func (p persistence) openPersistence() (db *bolt.DB, err error) {
	db, err = bolt.Open(p.dbPath, 0600, &bolt.Options{Timeout: 1 * time.Minute})
	if err != nil {
		return nil, err
	}
	return db, nil
}

// LoadThresholdOverrides loads all persisted trip points of the given sensor,
// keyed by threshold property name (f.ex. "CriticalHigh").
func (p persistence) LoadThresholdOverrides(sensorName string) (map[string]float64, error) {
	db, err := p.openPersistence()
	if err != nil {
		return nil, err
	}
	defer func(db *bolt.DB) {
		_ = db.Close()
	}(db)

	var overrides map[string]float64
	err = db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketThresholdOverrides))
		if b == nil {
			return os.ErrNotExist
		}
		v := b.Get([]byte(sensorName))
		if v == nil {
			return os.ErrNotExist
		}

		err := json.Unmarshal(v, &overrides)
		if err != nil {
			// if we cannot read the saved data, delete it
			ui.Warning("Unable to unmarshal saved threshold overrides for %s: %v", sensorName, err)
			err := b.Delete([]byte(sensorName))
			if err != nil {
				ui.Error("Unable to delete corrupt data key %s: %v", sensorName, err)
			}
			return nil
		}

		return err
	})

	return overrides, err
}

// SaveThresholdOverride persists one trip point of the given sensor.
func (p persistence) SaveThresholdOverride(sensorName string, property string, value float64) (err error) {
	db, err := p.openPersistence()
	if err != nil {
		return err
	}
	defer func(db *bolt.DB) {
		_ = db.Close()
	}(db)

	return db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(BucketThresholdOverrides))
		if err != nil {
			return err
		}

		overrides := map[string]float64{}
		if v := b.Get([]byte(sensorName)); v != nil {
			// keep other overrides of the same sensor if still readable
			_ = json.Unmarshal(v, &overrides)
		}
		overrides[property] = value

		data, err := json.Marshal(overrides)
		if err != nil {
			return err
		}
		return b.Put([]byte(sensorName), data)
	})
}

func (p persistence) DeleteThresholdOverrides(sensorName string) error {
	db, err := p.openPersistence()
	if err != nil {
		return err
	}
	defer func(db *bolt.DB) {
		_ = db.Close()
	}(db)

	return db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketThresholdOverrides))
		if b == nil {
			// no bucket yet
			return nil
		}
		v := b.Get([]byte(sensorName))
		if v == nil {
			// no data for given key
			return nil
		}

		return b.Delete([]byte(sensorName))
	})
}
