package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goCampus/api"
)

// CurrentSchemaVersion is the version written by [Encode].
const CurrentSchemaVersion = 2

// ErrMalformedRecord is returned by [Decode] for data that is not a user record.
var ErrMalformedRecord = errors.New("malformed userInfo record")

// Record is the persisted form of the user half of a [State].
type Record struct {
	User      UserInfo
	TokenType string
	ExpiresAt time.Time
}

type recordV2 struct {
	V         int      `json:"v"`
	User      UserInfo `json:"user"`
	TokenType string   `json:"tokenType,omitempty"`
	ExpiresAt int64    `json:"expiresAt,omitempty"`
}

// legacyUser is the unversioned shape older front-ends stored: the user object
// itself, with a numeric or string id and either userType (code or role name) or a
// role field.
type legacyUser struct {
	ID       api.FlexString `json:"id"`
	Name     string         `json:"name"`
	Nickname string         `json:"nickname"`
	Username string         `json:"username"`
	Phone    string         `json:"phone"`
	Avatar   string         `json:"avatar"`
	UserType api.FlexString `json:"userType"`
	Role     string         `json:"role"`
}

// Encode serializes r at [CurrentSchemaVersion].
func Encode(r Record) ([]byte, error) {
	out := recordV2{V: CurrentSchemaVersion, User: r.User, TokenType: r.TokenType}
	if !r.ExpiresAt.IsZero() {
		out.ExpiresAt = r.ExpiresAt.Unix()
	}
	return json.Marshal(out)
}

// Decode parses a stored record. Unversioned records are migrated; records written by
// a newer schema are rejected.
func Decode(data []byte) (Record, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return Record{}, ErrMalformedRecord
	}

	var head struct {
		V *int `json:"v"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if head.V == nil {
		return decodeLegacy(data)
	}
	if *head.V != CurrentSchemaVersion {
		return Record{}, fmt.Errorf("unsupported session schema version %d", *head.V)
	}

	var in recordV2
	if err := json.Unmarshal(data, &in); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	r := Record{User: in.User, TokenType: in.TokenType}
	if in.ExpiresAt > 0 {
		r.ExpiresAt = time.Unix(in.ExpiresAt, 0)
	}
	return r, nil
}

func decodeLegacy(data []byte) (Record, error) {
	var in legacyUser
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&in); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}

	u := UserInfo{
		ID:       in.ID.String(),
		Name:     in.Name,
		Username: in.Username,
		Phone:    in.Phone,
		Avatar:   in.Avatar,
	}
	if u.Name == "" {
		u.Name = in.Nickname
	}
	if in.UserType != "" {
		if t, err := api.ParseUserType(in.UserType.String()); err == nil {
			u.UserType = t
		}
	}
	if u.UserType == 0 && in.Role != "" {
		if t, err := api.ParseUserType(in.Role); err == nil {
			u.UserType = t
		}
	}
	return Record{User: u}, nil
}
