package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"
)

const (
	blobVersionCurrent = 2
	blobVersionV1      = 1
)

// ErrBlobCorrupt is returned when a persisted session blob cannot be decoded.
var ErrBlobCorrupt = errors.New("session blob corrupt")

// Encode serializes the token, role and update time of s.
//
// Layout (v2): version byte, uint16 token length, token, uint8 role length, role,
// int64 unix-nanosecond update time. The epoch is process-local and never encoded.
func Encode(s Session) ([]byte, error) {
	if len(s.Token) > math.MaxUint16 {
		return nil, errors.New("token too long")
	}
	if len(s.Role) > math.MaxUint8 {
		return nil, errors.New("role too long")
	}

	var buf bytes.Buffer
	buf.Grow(1 + 2 + len(s.Token) + 1 + len(s.Role) + 8)

	buf.WriteByte(blobVersionCurrent)

	if err := binary.Write(&buf, binary.BigEndian, uint16(len(s.Token))); err != nil {
		return nil, err
	}
	buf.WriteString(s.Token)

	buf.WriteByte(byte(len(s.Role)))
	buf.WriteString(s.Role)

	var updated int64
	if !s.UpdatedAt.IsZero() {
		updated = s.UpdatedAt.UnixNano()
	}
	if err := binary.Write(&buf, binary.BigEndian, updated); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses a blob written by Encode. v1 blobs, which carry no update time, are
// read with a zero UpdatedAt.
func Decode(data []byte) (Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrBlobCorrupt, err)
	}
	if version != blobVersionCurrent && version != blobVersionV1 {
		return Session{}, fmt.Errorf("%w: unsupported blob version %d", ErrBlobCorrupt, version)
	}

	var tokenLen uint16
	if err := binary.Read(reader, binary.BigEndian, &tokenLen); err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrBlobCorrupt, err)
	}
	token := make([]byte, tokenLen)
	if _, err := io.ReadFull(reader, token); err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrBlobCorrupt, err)
	}

	roleLen, err := reader.ReadByte()
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrBlobCorrupt, err)
	}
	role := make([]byte, roleLen)
	if _, err := io.ReadFull(reader, role); err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrBlobCorrupt, err)
	}

	s := Session{
		Token: string(token),
		Role:  string(role),
	}

	if version == blobVersionCurrent {
		var updated int64
		if err := binary.Read(reader, binary.BigEndian, &updated); err != nil {
			return Session{}, fmt.Errorf("%w: %v", ErrBlobCorrupt, err)
		}
		if updated != 0 {
			s.UpdatedAt = time.Unix(0, updated)
		}
	}

	if reader.Len() != 0 {
		return Session{}, fmt.Errorf("%w: %d trailing bytes", ErrBlobCorrupt, reader.Len())
	}

	return s, nil
}
