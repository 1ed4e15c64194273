package usecase

import (
	"bytes"
	"encoding/json"

	"FinAlert/internal/domain/models"

	"github.com/go-playground/validator/v10"
)

const batchFrameType = "batch"

type batchEnvelope struct {
	Type   string          `json:"type"`
	Alerts json.RawMessage `json:"alerts"`
}

type decodedBatch struct {
	Alerts  []models.AlertMessage
	Skipped []error
	// Ignored is set for well-formed frames of another type.
	Ignored bool
	Type    string
}

// decodeBatch parses one feed frame. A frame-level error means the whole frame
// is dropped; invalid entries are reported in Skipped and do not affect the rest.
func decodeBatch(v *validator.Validate, raw []byte) (decodedBatch, error) {
	var env batchEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return decodedBatch{}, &models.DecodeError{Index: -1, Reason: "malformed json", Err: err}
	}
	if env.Type != batchFrameType {
		return decodedBatch{Ignored: true, Type: env.Type}, nil
	}
	if len(env.Alerts) == 0 || bytes.Equal(env.Alerts, []byte("null")) {
		return decodedBatch{}, &models.DecodeError{Index: -1, Reason: "batch without alerts"}
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(env.Alerts, &entries); err != nil {
		return decodedBatch{}, &models.DecodeError{Index: -1, Reason: "alerts is not an array", Err: err}
	}

	out := decodedBatch{Type: env.Type, Alerts: make([]models.AlertMessage, 0, len(entries))}
	for i, entry := range entries {
		var m models.AlertMessage
		if err := json.Unmarshal(entry, &m); err != nil {
			out.Skipped = append(out.Skipped, &models.DecodeError{Index: i, Reason: "malformed entry", Err: err})
			continue
		}
		if err := v.Struct(m); err != nil {
			out.Skipped = append(out.Skipped, &models.DecodeError{Index: i, Reason: "invalid entry", Err: err})
			continue
		}
		if m.Price.IsNegative() {
			out.Skipped = append(out.Skipped, &models.DecodeError{Index: i, Reason: "negative price"})
			continue
		}
		out.Alerts = append(out.Alerts, m)
	}
	return out, nil
}
