package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/Tyrowin/challengehub/internal/models"
)

var (
	challengesBucket      = []byte("challenges")
	participationsBucket  = []byte("participations")
	participationIndex    = []byte("participation_index")
	challengeParticipants = []byte("challenge_participations")
	messagesBucket        = []byte("messages")
	activityBucket        = []byte("activity")
)

// BoltStore persists hub state in a bbolt file. Records are JSON values;
// per-challenge collections use (challengeID, recordID) big-endian keys so a
// cursor over a challenge prefix yields creation order.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens (creating if needed) the bbolt database at path.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{
			challengesBucket, participationsBucket, participationIndex,
			challengeParticipants, messagesBucket, activityBucket,
		} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func putJSON(b *bolt.Bucket, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put(key, data)
}

func (s *BoltStore) CreateChallenge(_ context.Context, c *models.Challenge) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(challengesBucket)
		if c.ID == 0 {
			for {
				seq, err := b.NextSequence()
				if err != nil {
					return err
				}
				if b.Get(itob(int64(seq))) == nil {
					c.ID = int64(seq)
					break
				}
			}
		} else if b.Get(itob(c.ID)) != nil {
			return ErrAlreadyExists
		}
		return putJSON(b, itob(c.ID), c)
	})
}

func (s *BoltStore) GetChallenge(_ context.Context, id int64) (*models.Challenge, error) {
	var c models.Challenge
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(challengesBucket).Get(itob(id))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &c)
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *BoltStore) UpdateParticipantCount(_ context.Context, id int64, delta int) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(challengesBucket)
		data := b.Get(itob(id))
		if data == nil {
			return ErrNotFound
		}
		var c models.Challenge
		if err := json.Unmarshal(data, &c); err != nil {
			return err
		}
		c.CurrentParticipants += delta
		if c.CurrentParticipants < 0 {
			c.CurrentParticipants = 0
		}
		return putJSON(b, itob(id), &c)
	})
}

func (s *BoltStore) GetParticipation(_ context.Context, userID, challengeID int64) (*models.Participation, error) {
	var p models.Participation
	err := s.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket(participationIndex).Get(compositeKey(userID, challengeID))
		if id == nil {
			return ErrNotFound
		}
		data := tx.Bucket(participationsBucket).Get(id)
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &p)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *BoltStore) CreateParticipation(_ context.Context, p *models.Participation) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		index := tx.Bucket(participationIndex)
		key := compositeKey(p.UserID, p.ChallengeID)
		if index.Get(key) != nil {
			return ErrAlreadyExists
		}
		b := tx.Bucket(participationsBucket)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		p.ID = int64(seq)
		if err := putJSON(b, itob(p.ID), p); err != nil {
			return err
		}
		if err := index.Put(key, itob(p.ID)); err != nil {
			return err
		}
		return tx.Bucket(challengeParticipants).Put(compositeKey(p.ChallengeID, p.ID), nil)
	})
}

func (s *BoltStore) UpdateParticipation(_ context.Context, id int64, update models.ParticipationUpdate) (*models.Participation, error) {
	var p models.Participation
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(participationsBucket)
		data := b.Get(itob(id))
		if data == nil {
			return ErrNotFound
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		update.Apply(&p)
		return putJSON(b, itob(id), &p)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *BoltStore) ListParticipationsForChallenge(_ context.Context, challengeID int64) ([]*models.Participation, error) {
	var out []*models.Participation
	err := s.db.View(func(tx *bolt.Tx) error {
		records := tx.Bucket(participationsBucket)
		prefix := itob(challengeID)
		c := tx.Bucket(challengeParticipants).Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			data := records.Get(k[8:])
			if data == nil {
				continue
			}
			var p models.Participation
			if err := json.Unmarshal(data, &p); err != nil {
				return err
			}
			out = append(out, &p)
		}
		return nil
	})
	return out, err
}

func (s *BoltStore) AppendMessage(_ context.Context, m *models.Message) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(messagesBucket)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		m.ID = int64(seq)
		return putJSON(b, compositeKey(m.ChallengeID, m.ID), m)
	})
}

func (s *BoltStore) ListRecentMessages(_ context.Context, challengeID int64, limit int) ([]*models.Message, error) {
	var out []*models.Message
	err := s.db.View(func(tx *bolt.Tx) error {
		return scanNewestFirst(tx.Bucket(messagesBucket), challengeID, limit, func(v []byte) error {
			var m models.Message
			if err := json.Unmarshal(v, &m); err != nil {
				return err
			}
			out = append(out, &m)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *BoltStore) AppendActivity(_ context.Context, e *models.ActivityEvent) error {
	if e.Data == nil {
		return fmt.Errorf("activity for challenge %d has no data", e.ChallengeID)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(activityBucket)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		e.ID = int64(seq)
		return putJSON(b, compositeKey(e.ChallengeID, e.ID), e)
	})
}

func (s *BoltStore) ListRecentActivity(_ context.Context, challengeID int64, limit int) ([]*models.ActivityEvent, error) {
	var out []*models.ActivityEvent
	err := s.db.View(func(tx *bolt.Tx) error {
		return scanNewestFirst(tx.Bucket(activityBucket), challengeID, limit, func(v []byte) error {
			var e models.ActivityEvent
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			out = append(out, &e)
			return nil
		})
	})
	return out, err
}

// Close closes the bbolt file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// scanNewestFirst walks the challengeID prefix of b backwards, calling fn for
// at most limit values (all when limit <= 0).
func scanNewestFirst(b *bolt.Bucket, challengeID int64, limit int, fn func(v []byte) error) error {
	prefix := itob(challengeID)
	c := b.Cursor()

	k, v := c.Seek(itob(challengeID + 1))
	if k == nil {
		k, v = c.Last()
	} else {
		k, v = c.Prev()
	}

	count := 0
	for ; k != nil && bytes.HasPrefix(k, prefix); k, v = c.Prev() {
		if limit > 0 && count >= limit {
			break
		}
		if err := fn(v); err != nil {
			return err
		}
		count++
	}
	return nil
}
