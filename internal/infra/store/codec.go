package store

import (
	"encoding/json"
	"fmt"

	"telegram-llm-relay/internal/domain/model"
	"telegram-llm-relay/internal/infra/security"
)

// Codec turns chat state into the bytes a repository stores: plain JSON, or
// JSON sealed by the encryption service when one is configured.
type Codec struct {
	enc *security.EncryptionService
}

func NewCodec(enc *security.EncryptionService) Codec {
	return Codec{enc: enc}
}

func (c Codec) Encrypted() bool { return c.enc != nil }

func (c Codec) Marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	if c.enc == nil {
		return b, nil
	}
	return c.enc.Seal(b)
}

// MarshalIndent is used for files meant to be read by humans when unencrypted.
func (c Codec) MarshalIndent(v any) ([]byte, error) {
	if c.enc != nil {
		return c.Marshal(v)
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return b, nil
}

func (c Codec) Unmarshal(data []byte, v any) error {
	if c.enc != nil {
		pt, err := c.enc.Open(data)
		if err != nil {
			return fmt.Errorf("decrypt state: %w", err)
		}
		data = pt
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode state: %w", err)
	}
	return nil
}

// UnmarshalStates decodes a whole chat mapping. Entries stored as null carry
// no state; they are removed and their chat ids returned in dropped.
func (c Codec) UnmarshalStates(data []byte) (states model.ChatStates, dropped []int64, err error) {
	if err := c.Unmarshal(data, &states); err != nil {
		return nil, nil, err
	}
	if states == nil {
		return model.ChatStates{}, nil, nil
	}
	for id, st := range states {
		if st == nil {
			dropped = append(dropped, id)
			delete(states, id)
		}
	}
	return states, dropped, nil
}
