package session

import (
	"encoding/json"
	"errors"

	"github.com/slatekit/slateauth"
)

// CurrentSchemaVersion is the record version written by this package.
const CurrentSchemaVersion = 1

var errUnknownSchema = errors.New("session: unknown schema version")

type record struct {
	Version   int               `json:"v"`
	Profile   slateauth.Profile `json:"profile"`
	CreatedAt int64             `json:"created"`
	ExpiresAt int64             `json:"expires,omitempty"`
}

func encode(rec *record) ([]byte, error) {
	rec.Version = CurrentSchemaVersion
	return json.Marshal(rec)
}

func decode(data []byte) (*record, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	if rec.Version != CurrentSchemaVersion {
		return nil, errUnknownSchema
	}
	if rec.Profile.Username == "" {
		return nil, errors.New("session: record without username")
	}
	return &rec, nil
}
