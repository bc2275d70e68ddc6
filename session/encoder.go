package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const sessionFormatVersionV1 = 1

// Encode serialises s. SessionID is not part of the record; it is the key.
func Encode(s *Session) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(sessionFormatVersionV1)

	if err := writeShortString(&buf, "userID", s.UserID); err != nil {
		return nil, err
	}
	if err := writeShortString(&buf, "refreshJTI", s.RefreshJTI); err != nil {
		return nil, err
	}

	if err := binary.Write(&buf, binary.BigEndian, s.CreatedAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses a record produced by Encode.
func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != sessionFormatVersionV1 {
		return nil, fmt.Errorf("unsupported session schema version %d", version)
	}

	s := &Session{}

	if s.UserID, err = readShortString(reader); err != nil {
		return nil, err
	}
	if s.UserID == "" {
		return nil, errors.New("session record has empty user id")
	}
	if s.RefreshJTI, err = readShortString(reader); err != nil {
		return nil, err
	}

	if err := binary.Read(reader, binary.BigEndian, &s.CreatedAt); err != nil {
		return nil, err
	}
	if reader.Len() != 0 {
		return nil, errors.New("trailing bytes in session record")
	}

	return s, nil
}

func writeShortString(buf *bytes.Buffer, field, value string) error {
	if len(value) > 255 {
		return fmt.Errorf("%s too long", field)
	}
	buf.WriteByte(byte(len(value)))
	buf.WriteString(value)
	return nil
}

func readShortString(reader *bytes.Reader) (string, error) {
	n, err := reader.ReadByte()
	if err != nil {
		return "", err
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(reader, out); err != nil {
		return "", err
	}
	return string(out), nil
}
