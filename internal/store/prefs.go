package store

import (
	"database/sql"
	"errors"
	"strconv"
)

// Well-known preference keys persisted between runs.
const (
	PrefLastPlayQueueIndex = "LastPlayQueueIndex"
	PrefLastPlayQueueTime  = "LastPlayQueueTime"
)

func (s *Store) getPref(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *Store) setPref(key, value string) error {
	return s.WithTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO preferences (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, key, value)
		return err
	})
}

// GetIntPref returns the integer preference for key, or def if unset.
func (s *Store) GetIntPref(key string, def int) (int, error) {
	value, ok, err := s.getPref(key)
	if err != nil || !ok {
		return def, err
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return def, nil
	}
	return n, nil
}

// SetIntPref stores an integer preference.
func (s *Store) SetIntPref(key string, value int) error {
	return s.setPref(key, strconv.Itoa(value))
}

// GetFloatPref returns the float preference for key, or def if unset.
func (s *Store) GetFloatPref(key string, def float64) (float64, error) {
	value, ok, err := s.getPref(key)
	if err != nil || !ok {
		return def, err
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def, nil
	}
	return f, nil
}

// SetFloatPref stores a float preference.
func (s *Store) SetFloatPref(key string, value float64) error {
	return s.setPref(key, strconv.FormatFloat(value, 'f', -1, 64))
}
