package letter

import "encoding/json"

// Status is the lifecycle state of a letter. The single-character codes are
// what the database stores; the names are what the API speaks.
type Status int

const (
	// Draft letters are mutable and may still be sent.
	Draft Status = iota
	// Sent letters are read-only; update and delete are refused.
	Sent
	// Invalid is the sentinel for an unrecognized status name or code.
	// It is never a legal value to persist.
	Invalid
)

// statusCodes is the fixed status <-> code table. The mapping never changes
// at runtime, so it is a plain constant table rather than a cached lookup.
var statusCodes = [...]struct {
	name string
	code string
}{
	Draft:   {"Draft", "D"},
	Sent:    {"Sent", "S"},
	Invalid: {"Invalid", "I"},
}

// String returns the API name of the status.
func (s Status) String() string {
	if s < Draft || s > Invalid {
		return statusCodes[Invalid].name
	}
	return statusCodes[s].name
}

// Code returns the single-character storage code of the status.
func (s Status) Code() string {
	if s < Draft || s > Invalid {
		return statusCodes[Invalid].code
	}
	return statusCodes[s].code
}

// ParseStatus maps a status name ("Draft", "Sent") to its Status.
// Anything else maps to Invalid.
func ParseStatus(name string) Status {
	for st, entry := range statusCodes {
		if Status(st) != Invalid && entry.name == name {
			return Status(st)
		}
	}
	return Invalid
}

// StatusFromCode maps a storage code ("D", "S") to its Status.
// Anything else maps to Invalid.
func StatusFromCode(code string) Status {
	for st, entry := range statusCodes {
		if Status(st) != Invalid && entry.code == code {
			return Status(st)
		}
	}
	return Invalid
}

// MarshalJSON encodes the status as its API name.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a status name, mapping unknown names to Invalid so
// validation can report them instead of the decoder failing the request.
func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	*s = ParseStatus(name)
	return nil
}
