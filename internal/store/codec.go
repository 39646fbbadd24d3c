package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/Tyrowin/challengehub/internal/models"
)

func marshalActivityData(e *models.ActivityEvent) ([]byte, error) {
	if e.Data == nil {
		return nil, fmt.Errorf("activity for challenge %d has no data", e.ChallengeID)
	}
	data, err := json.Marshal(e.Data)
	if err != nil {
		return nil, fmt.Errorf("marshal activity data: %w", err)
	}
	return data, nil
}

// itob encodes v big-endian so byte order matches numeric order in bbolt.
func itob(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

func btoi(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b))
}

// compositeKey concatenates big-endian ids; a shorter key is a prefix of all
// keys that extend it.
func compositeKey(ids ...int64) []byte {
	b := make([]byte, 0, 8*len(ids))
	for _, id := range ids {
		b = append(b, itob(id)...)
	}
	return b
}
