// Package snapshot exports, imports and clears the whole data set.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"

	"github.com/medvault/medvault/internal/domain/appointment"
	"github.com/medvault/medvault/internal/domain/patient"
	"github.com/medvault/medvault/internal/domain/record"
	"github.com/medvault/medvault/internal/platform/docstore"
)

// ErrInvalidFormat is returned when an import payload is not a JSON object.
var ErrInvalidFormat = errors.New("invalid data format")

// Snapshot is the exchange format. Each field holds the collection's JSON
// array as stored.
type Snapshot struct {
	Patients       json.RawMessage `json:"patients"`
	MedicalRecords json.RawMessage `json:"medicalRecords"`
	Appointments   json.RawMessage `json:"appointments"`
}

// ImportResult names the snapshot keys that were written and those left
// untouched.
type ImportResult struct {
	Applied []string `json:"applied"`
	Skipped []string `json:"skipped"`
}

// section binds a snapshot key to its collection and to a shape check for
// the entity kind stored there.
type section struct {
	key        string
	collection string
	check      func([]byte) error
}

func shape[T any](data []byte) error {
	var v []T
	return json.Unmarshal(data, &v)
}

var sections = []section{
	{key: "patients", collection: docstore.Patients, check: shape[patient.Patient]},
	{key: "medicalRecords", collection: docstore.MedicalRecords, check: shape[record.MedicalRecord]},
	{key: "appointments", collection: docstore.Appointments, check: shape[appointment.Appointment]},
}

var emptyArray = json.RawMessage("[]")

type Service struct {
	docs   *docstore.Documents
	logger zerolog.Logger
}

func NewService(docs *docstore.Documents, logger zerolog.Logger) *Service {
	return &Service{docs: docs, logger: logger}
}

// Export returns every collection. Absent or unreadable collections are
// exported as empty arrays.
func (s *Service) Export(ctx context.Context) (*Snapshot, error) {
	out := make(map[string]json.RawMessage, len(sections))
	for _, sec := range sections {
		data, ok, err := s.docs.Raw(ctx, sec.collection)
		if err != nil {
			return nil, err
		}
		if !ok || !isArray(data) {
			if ok {
				s.logger.Warn().Str("collection", sec.collection).Msg("exporting malformed collection as empty")
			}
			out[sec.key] = emptyArray
			continue
		}
		out[sec.key] = json.RawMessage(bytes.TrimSpace(data))
	}
	return &Snapshot{
		Patients:       out["patients"],
		MedicalRecords: out["medicalRecords"],
		Appointments:   out["appointments"],
	}, nil
}

// Import writes every present, well-formed array in payload to its
// collection verbatim. Null, absent and malformed keys are skipped. The
// payload is checked in full before anything is written.
func (s *Service) Import(ctx context.Context, payload []byte) (*ImportResult, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(payload, &obj); err != nil || obj == nil {
		return nil, ErrInvalidFormat
	}

	res := &ImportResult{Applied: []string{}, Skipped: []string{}}
	var keys []string
	writes := make(map[string][]byte)
	for _, sec := range sections {
		raw, ok := obj[sec.key]
		if !ok || !isArray(raw) {
			res.Skipped = append(res.Skipped, sec.key)
			continue
		}
		if err := sec.check(raw); err != nil {
			s.logger.Warn().Err(err).Str("key", sec.key).Msg("skipping malformed import section")
			res.Skipped = append(res.Skipped, sec.key)
			continue
		}
		keys = append(keys, sec.collection)
		writes[sec.collection] = raw
		res.Applied = append(res.Applied, sec.key)
	}

	if err := s.docs.ReplaceRaw(ctx, keys, writes); err != nil {
		return nil, err
	}
	s.logger.Info().Strs("applied", res.Applied).Strs("skipped", res.Skipped).Msg("imported snapshot")
	return res, nil
}

// Clear removes every collection.
func (s *Service) Clear(ctx context.Context) error {
	if err := s.docs.RemoveAll(ctx, docstore.Collections...); err != nil {
		return err
	}
	s.logger.Info().Msg("cleared all data")
	return nil
}

func isArray(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '[' && json.Valid(trimmed)
}
