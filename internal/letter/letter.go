package letter

import "time"

// Recipient type codes as stored in the recipient table.
const (
	RecipientFrom = "F"
	RecipientTo   = "TO"
	RecipientCC   = "CC"
	RecipientBCC  = "BC"
)

// TagIDSeparator joins a letter id and a tag key into a tag id.
const TagIDSeparator = "-"

// Letter is one email notification plus its delivery metadata and search
// tags. Content and EmailInfo.Subject are pointers because the validation
// rules distinguish a missing field from an empty one; address lists rely on
// the nil/empty slice distinction for the same reason.
type Letter struct {
	ID               string            `json:"id,omitempty"`
	Content          *string           `json:"content"`
	Status           *Status           `json:"status"`
	StatusUser       string            `json:"statusUser"`
	StatusDate       time.Time         `json:"statusDate,omitempty"`
	PlainText        bool              `json:"plainText"`
	TemplateID       string            `json:"templateId,omitempty"`
	ApplicationID    string            `json:"applicationId"`
	EmailInfo        *EmailInfo        `json:"emailInfo"`
	SearchParameters []SearchParameter `json:"searchParameters"`
}

// EmailInfo holds the addressing of a letter.
type EmailInfo struct {
	Subject *string  `json:"subject"`
	From    string   `json:"from"`
	To      []string `json:"to"`
	CC      []string `json:"cc"`
	BCC     []string `json:"bcc"`
}

// SearchParameter is a key-value business tag attached to a letter. The ID is
// derived as "<letterId>-<key>" once the tag row is stored.
type SearchParameter struct {
	ID    string `json:"id,omitempty"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

// EffectiveStatus returns the letter's status, treating a missing status as
// Draft. Validators report the missing field separately.
func (l *Letter) EffectiveStatus() Status {
	if l.Status == nil {
		return Draft
	}
	return *l.Status
}

// ContentString returns the content, treating a missing body as empty.
func (l *Letter) ContentString() string {
	if l.Content == nil {
		return ""
	}
	return *l.Content
}

// SubjectString returns the subject, treating missing addressing or a
// missing subject as empty.
func (l *Letter) SubjectString() string {
	return l.EmailInfo.SubjectString()
}

// SubjectString returns the subject, treating a missing subject as empty.
func (e *EmailInfo) SubjectString() string {
	if e == nil || e.Subject == nil {
		return ""
	}
	return *e.Subject
}

// StatusOf is a convenience for building request literals.
func StatusOf(s Status) *Status { return &s }

// StringOf is a convenience for building request literals.
func StringOf(s string) *string { return &s }

// FlagToString stores a boolean as the single-character flag the letter
// table uses.
func FlagToString(v bool) string {
	if v {
		return "Y"
	}
	return "N"
}

// StringToFlag parses the stored single-character flag, accepting the looser
// spellings older writers left behind. Unknown values read as false.
func StringToFlag(s string) bool {
	switch s {
	case "Y", "y", "yes", "true":
		return true
	default:
		return false
	}
}
