// Package models defines the fleet data model served by fleetsim.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Status is the reported health of a simulated service.
type Status string

const (
	StatusOnline   Status = "online"
	StatusOffline  Status = "offline"
	StatusDegraded Status = "degraded"
)

// Statuses lists every Status in draw order.
var Statuses = []Status{StatusOnline, StatusOffline, StatusDegraded}

// ServiceRecord is one simulated service.
// ID and Name identify the record and are never rewritten; the remaining
// fields are regenerated on every simulator tick.
type ServiceRecord struct {
	// ID is kept as raw JSON so fixtures using numeric ids round-trip unchanged.
	ID   json.RawMessage `json:"id,omitempty"`
	Name string          `json:"name,omitempty"`

	Status       Status `json:"status"`
	CPU          int    `json:"cpu"`          // percent 0-100
	Memory       int    `json:"memory"`       // MB
	ResponseTime int    `json:"responseTime"` // ms
	Errors       int    `json:"errors"`

	// Extra holds fixture keys fleetsim does not know about.
	Extra map[string]json.RawMessage `json:"-"`
}

// ServiceCollection is the ordered fleet. Order is part of its identity.
type ServiceCollection []ServiceRecord

var knownKeys = map[string]struct{}{
	"id": {}, "name": {}, "status": {}, "cpu": {}, "memory": {}, "responseTime": {}, "errors": {},
}

// UnmarshalJSON decodes a record and keeps unknown keys in Extra.
// Numeric fields are accepted as any JSON number and rounded.
func (s *ServiceRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var rec ServiceRecord
	if v, ok := raw["id"]; ok && !bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		rec.ID = append(json.RawMessage(nil), v...)
	}
	if v, ok := raw["name"]; ok {
		if err := json.Unmarshal(v, &rec.Name); err != nil {
			return fmt.Errorf("name: %w", err)
		}
	}
	if v, ok := raw["status"]; ok {
		if err := json.Unmarshal(v, &rec.Status); err != nil {
			return fmt.Errorf("status: %w", err)
		}
	}
	for key, dst := range map[string]*int{
		"cpu":          &rec.CPU,
		"memory":       &rec.Memory,
		"responseTime": &rec.ResponseTime,
		"errors":       &rec.Errors,
	} {
		v, ok := raw[key]
		if !ok {
			continue
		}
		n, err := decodeInt(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
	}

	for k, v := range raw {
		if _, known := knownKeys[k]; known {
			continue
		}
		if rec.Extra == nil {
			rec.Extra = make(map[string]json.RawMessage)
		}
		rec.Extra[k] = v
	}

	*s = rec
	return nil
}

// MarshalJSON writes the known fields merged with Extra.
func (s ServiceRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Extra)+7)
	for k, v := range s.Extra {
		out[k] = v
	}
	if len(s.ID) > 0 {
		out["id"] = s.ID
	}
	if s.Name != "" {
		out["name"] = s.Name
	}
	out["status"] = s.Status
	out["cpu"] = s.CPU
	out["memory"] = s.Memory
	out["responseTime"] = s.ResponseTime
	out["errors"] = s.Errors
	return json.Marshal(out)
}

// Clone returns a deep copy, so mutating the copy never reaches the original.
func (s ServiceRecord) Clone() ServiceRecord {
	c := s
	if s.ID != nil {
		c.ID = append(json.RawMessage(nil), s.ID...)
	}
	if s.Extra != nil {
		c.Extra = make(map[string]json.RawMessage, len(s.Extra))
		for k, v := range s.Extra {
			c.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return c
}

// Validate reports whether the numeric fields are consistent with Status.
func (s ServiceRecord) Validate() error {
	switch s.Status {
	case StatusOffline:
		if s.CPU != 0 || s.Memory != 0 || s.ResponseTime != 0 {
			return fmt.Errorf("offline service %q reports load (cpu=%d memory=%d responseTime=%d)",
				s.Name, s.CPU, s.Memory, s.ResponseTime)
		}
		if s.Errors < 5 || s.Errors > 20 {
			return fmt.Errorf("offline service %q errors %d outside [5,20]", s.Name, s.Errors)
		}
	case StatusOnline, StatusDegraded:
		checks := []struct {
			field    string
			v, lo, hi int
		}{
			{"cpu", s.CPU, 20, 90},
			{"memory", s.Memory, 200, 1024},
			{"responseTime", s.ResponseTime, 80, 300},
			{"errors", s.Errors, 0, 5},
		}
		for _, c := range checks {
			if c.v < c.lo || c.v > c.hi {
				return fmt.Errorf("%s service %q %s %d outside [%d,%d]", s.Status, s.Name, c.field, c.v, c.lo, c.hi)
			}
		}
	default:
		return fmt.Errorf("service %q has unknown status %q", s.Name, s.Status)
	}
	return nil
}

func decodeInt(v json.RawMessage) (int, error) {
	var f float64
	if err := json.Unmarshal(v, &f); err != nil {
		return 0, err
	}
	return int(math.Round(f)), nil
}
