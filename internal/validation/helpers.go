package validation

import (
	"net/mail"
	"strconv"
	"strings"

	"github.com/busybox42/lettera/internal/letter"
	"golang.org/x/text/encoding/charmap"
)

// Field names as they appear in API payloads. Send-mode fields carry the
// request-relative path.
const (
	FieldLetter            = "letter"
	FieldID                = "id"
	FieldContent           = "content"
	FieldStatus            = "status"
	FieldStatusUser        = "statusUser"
	FieldApplicationID     = "applicationId"
	FieldEmailInfo         = "emailInfo"
	FieldSubject           = "emailInfo.subject"
	FieldFrom              = "emailInfo.from"
	FieldTo                = "emailInfo.to"
	FieldCC                = "emailInfo.cc"
	FieldBCC               = "emailInfo.bcc"
	FieldSearchParameters  = "searchParameters"
	FieldTagKey            = "searchParameter.key"
	FieldTemplateID        = "templateId"
	FieldQueryParameters   = "queryParameters"
	FieldSendRequest       = "letterRequest"
	FieldSendContent       = "letter.content"
	FieldSendSubject       = "letter.emailInfo.subject"
	FieldSendFrom          = "letter.emailInfo.from"
	FieldSendTo            = "letter.emailInfo.to"
	FieldSendCC            = "letter.emailInfo.cc"
	FieldSendBCC           = "letter.emailInfo.bcc"
	FieldDebugRecipients   = "sendMetaData.debugRecipients"
	FieldDefaultBCC        = "sendMetaData.defaultBccRecipients"
	FieldProdSupport       = "sendMetaData.prodSupportRecipients"
)

// Validation messages. The "missing" variants differ on purpose: some fields
// may legally be empty while a draft, but never absent.
const (
	msgMissing            = "The field cannot be null, missing, or empty: "
	msgMissingNull        = "The field cannot be missing or null: "
	msgUnsupportedChars   = "The field cannot contain unsupported characters: "
	msgBadAddressFormat   = "The field cannot contain invalid email address format: "
	msgIDNonNumeric       = "Letter ID has to be a valid integer"
	msgApplIDNonNumeric   = "Application ID has to be a valid integer"
	msgInvalidStatus      = "Value for status can only be 'Sent' or 'Draft'"
	msgUnknownApplication = "Invalid value passed for applicationId: "
	msgBadTagEntry        = "The field cannot contain a search parameter with a null or empty key or value"
	msgWrongTagCount      = "The field can only have one key-value pair"
	msgTemplateLookup     = "Network error occurred when contacting the template service"
	msgApplLookup         = "Error occurred when contacting the application registry"

	msgSendMissingBody    = "Error sending letter - Missing required field(s): Mail Body"
	msgSendMissingSubject = "Error sending letter - Missing required field(s): Mail subject"
	msgSendMissingSender  = "Error sending letter - Missing required field(s): Sender Email Address"
	msgSendMissingTo      = "Error sending letter - Missing required field(s): To Email Address"
	msgSendBadAddress     = "Error sending letter - Invalid e-mail address format."
	msgSendEmptyString    = "Error sending letter - Empty String submitted in recipient field(s)"
	msgSendMissingLetter  = "Letter must not be null/empty"
	msgSendMissingInfo    = "Email information object must be populated"
)

// isBlank reports whether s is empty after trimming whitespace.
func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// isNumericID reports whether s parses as an integer id.
func isNumericID(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}

// isPositiveID reports whether s parses as a positive integer.
func isPositiveID(s string) bool {
	n, err := strconv.Atoi(s)
	return err == nil && n > 0
}

// isEncodable reports whether s survives a round trip through the mail
// system's 8-bit code page without loss. Characters outside Windows-1252
// fail the encode step.
func isEncodable(s string) bool {
	_, err := charmap.Windows1252.NewEncoder().String(s)
	return err == nil
}

// isValidAddress reports whether addr is one bare, syntactically valid
// email address. Display names are not accepted.
func isValidAddress(addr string) bool {
	parsed, err := mail.ParseAddress(addr)
	return err == nil && parsed.Address == addr
}

// validateAddressList checks every address in list for format validity, but
// reports at most one error: scanning stops at the first invalid entry.
// A nil or empty list is fine here; presence rules live with the caller.
func validateAddressList(field string, list []string) []letter.FieldError {
	for _, addr := range list {
		if !isValidAddress(addr) {
			return []letter.FieldError{{Field: field, Message: msgBadAddressFormat + field}}
		}
	}
	return nil
}

// validateSearchParameters applies the list-level tag rules: the list must
// be present and non-empty, and the first entry with a blank key or value
// fails the whole list with a single error.
func validateSearchParameters(params []letter.SearchParameter) []letter.FieldError {
	if len(params) == 0 {
		return []letter.FieldError{{Field: FieldSearchParameters, Message: msgMissing + FieldSearchParameters}}
	}
	for _, p := range params {
		if isBlank(p.Key) || isBlank(p.Value) {
			return []letter.FieldError{{Field: FieldSearchParameters, Message: msgBadTagEntry}}
		}
	}
	return nil
}
