package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

// Tx is a scoped handle on one bbolt transaction.
type Tx struct {
	tx       *bolt.Tx
	scope    map[Table]struct{}
	writable bool
}

func newTx(btx *bolt.Tx, tables []Table, writable bool) *Tx {
	scope := make(map[Table]struct{}, len(tables))
	for _, t := range tables {
		scope[t] = struct{}{}
	}
	return &Tx{tx: btx, scope: scope, writable: writable}
}

func (t *Tx) bucket(table Table, write bool) (*bolt.Bucket, error) {
	if _, ok := t.scope[table]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotInScope, table)
	}
	if write && !t.writable {
		return nil, fmt.Errorf("%w: %s", ErrReadOnly, table)
	}
	b := t.tx.Bucket([]byte(table))
	if b == nil {
		return nil, fmt.Errorf("%w: %w: %s", ErrStorage, ErrTableMissing, table)
	}
	return b, nil
}

// Get decodes the row stored under key into v. It reports false when the
// row does not exist.
func (t *Tx) Get(table Table, key string, v any) (bool, error) {
	b, err := t.bucket(table, false)
	if err != nil {
		return false, err
	}
	raw := b.Get([]byte(key))
	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("%w: decode %s/%s: %w", ErrStorage, table, key, err)
	}
	return true, nil
}

// Put encodes v as JSON and stores it under key, replacing any previous row.
func (t *Tx) Put(table Table, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encode %s/%s: %w", ErrStorage, table, key, err)
	}
	return t.PutRaw(table, key, raw)
}

func (t *Tx) PutRaw(table Table, key string, raw []byte) error {
	b, err := t.bucket(table, true)
	if err != nil {
		return err
	}
	if err := b.Put([]byte(key), raw); err != nil {
		return fmt.Errorf("%w: put %s/%s: %w", ErrStorage, table, key, err)
	}
	return nil
}

func (t *Tx) GetRaw(table Table, key string) ([]byte, error) {
	b, err := t.bucket(table, false)
	if err != nil {
		return nil, err
	}
	raw := b.Get([]byte(key))
	if raw == nil {
		return nil, nil
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, nil
}

// Delete removes the row under key. Missing rows are not an error.
func (t *Tx) Delete(table Table, key string) error {
	b, err := t.bucket(table, true)
	if err != nil {
		return err
	}
	if err := b.Delete([]byte(key)); err != nil {
		return fmt.Errorf("%w: delete %s/%s: %w", ErrStorage, table, key, err)
	}
	return nil
}

// Clear removes every row of table, keeping its sequence counter.
func (t *Tx) Clear(table Table) error {
	b, err := t.bucket(table, true)
	if err != nil {
		return err
	}
	seq := b.Sequence()
	if err := t.tx.DeleteBucket([]byte(table)); err != nil {
		return fmt.Errorf("%w: clear %s: %w", ErrStorage, table, err)
	}
	nb, err := t.tx.CreateBucket([]byte(table))
	if err != nil {
		return fmt.Errorf("%w: clear %s: %w", ErrStorage, table, err)
	}
	if err := nb.SetSequence(seq); err != nil {
		return fmt.Errorf("%w: clear %s: %w", ErrStorage, table, err)
	}
	return nil
}

// ForEach visits rows in key order. Returning an error stops the walk.
func (t *Tx) ForEach(table Table, fn func(key string, raw []byte) error) error {
	b, err := t.bucket(table, false)
	if err != nil {
		return err
	}
	return b.ForEach(func(k, v []byte) error {
		return fn(string(k), v)
	})
}

// ForEachPrefix visits rows whose key starts with prefix.
func (t *Tx) ForEachPrefix(table Table, prefix string, fn func(key string, raw []byte) error) error {
	b, err := t.bucket(table, false)
	if err != nil {
		return err
	}
	p := []byte(prefix)
	c := b.Cursor()
	for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
		if err := fn(string(k), v); err != nil {
			return err
		}
	}
	return nil
}

// CountPrefix counts rows whose key starts with prefix.
func (t *Tx) CountPrefix(table Table, prefix string) (int, error) {
	n := 0
	err := t.ForEachPrefix(table, prefix, func(string, []byte) error {
		n++
		return nil
	})
	return n, err
}

func (t *Tx) Count(table Table) (int, error) {
	return t.CountPrefix(table, "")
}

// NextSequence returns the next auto-increment id for table.
func (t *Tx) NextSequence(table Table) (int64, error) {
	b, err := t.bucket(table, true)
	if err != nil {
		return 0, err
	}
	id, err := b.NextSequence()
	if err != nil {
		return 0, fmt.Errorf("%w: sequence %s: %w", ErrStorage, table, err)
	}
	return int64(id), nil
}

// SequenceKey formats an auto-increment id so that byte order matches numeric order.
func SequenceKey(id int64) string {
	return fmt.Sprintf("%020d", id)
}

// Get loads a single row as T. It returns nil when the row is missing.
func Get[T any](tx *Tx, table Table, key string) (*T, error) {
	var v T
	ok, err := tx.Get(table, key, &v)
	if err != nil || !ok {
		return nil, err
	}
	return &v, nil
}

// List decodes every row of table as T, keeping those accepted by keep.
// A nil keep accepts all rows.
func List[T any](tx *Tx, table Table, keep func(*T) bool) ([]T, error) {
	out := []T{}
	err := tx.ForEach(table, func(key string, raw []byte) error {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("%w: decode %s/%s: %w", ErrStorage, table, key, err)
		}
		if keep == nil || keep(&v) {
			out = append(out, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
