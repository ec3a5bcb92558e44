package model

import (
	"encoding/json"
	"fmt"
)

// Delta is a partial update to one entity. The wire shape is flat: the
// envelope fields live in the same JSON object as the entity fields, so a
// delta like {"kind":"betting_offer","id":"bo1","odds":"2.35"} decodes into a
// BettingOffer carrying only the odds field.
//
// Removed is an explicit tombstone; deletion is never represented by absence.
type Delta struct {
	Kind    Kind   `json:"kind"`
	ID      string `json:"id"`
	Seq     int64  `json:"seq,omitempty"`
	Removed bool   `json:"removed,omitempty"`

	// Entity holds the decoded partial record. Nil for tombstones.
	Entity Entity `json:"-"`
}

// Key returns the identity of the record the delta targets.
func (d Delta) Key() Key { return Key{Kind: d.Kind, ID: d.ID} }

func (d *Delta) UnmarshalJSON(data []byte) error {
	var head struct {
		Kind    Kind   `json:"kind"`
		ID      string `json:"id"`
		Seq     int64  `json:"seq"`
		Removed bool   `json:"removed"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	if head.ID == "" {
		return fmt.Errorf("delta missing id")
	}

	d.Kind = head.Kind
	d.ID = head.ID
	d.Seq = head.Seq
	d.Removed = head.Removed
	d.Entity = nil

	if head.Removed {
		// Tombstones carry no fields.
		if _, err := NewEntity(head.Kind, head.ID); err != nil {
			return err
		}
		return nil
	}

	ent, err := NewEntity(head.Kind, head.ID)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, ent); err != nil {
		return fmt.Errorf("decode %s delta: %w", head.Kind, err)
	}
	d.Entity = ent
	return nil
}

func (d Delta) MarshalJSON() ([]byte, error) {
	if d.Removed || d.Entity == nil {
		return json.Marshal(struct {
			Kind    Kind   `json:"kind"`
			ID      string `json:"id"`
			Seq     int64  `json:"seq,omitempty"`
			Removed bool   `json:"removed,omitempty"`
		}{d.Kind, d.ID, d.Seq, d.Removed})
	}

	// Flatten envelope and entity into one object.
	fields, err := json.Marshal(d.Entity)
	if err != nil {
		return nil, err
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(fields, &obj); err != nil {
		return nil, err
	}
	obj["kind"], _ = json.Marshal(d.Kind)
	obj["id"], _ = json.Marshal(d.ID)
	if d.Seq != 0 {
		obj["seq"], _ = json.Marshal(d.Seq)
	}
	return json.Marshal(obj)
}

// DeltaFor wraps an entity as an upsert delta.
func DeltaFor(ent Entity) Delta {
	k := ent.Key()
	return Delta{Kind: k.Kind, ID: k.ID, Entity: ent}
}

// Tombstone builds an explicit removal delta.
func Tombstone(kind Kind, id string) Delta {
	return Delta{Kind: kind, ID: id, Removed: true}
}
