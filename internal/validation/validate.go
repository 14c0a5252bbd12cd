// Package validation is the rule engine that decides whether a letter
// request is acceptable. Validators never fail fast across unrelated
// fields: they accumulate an ordered error list and leave the decision to
// the caller. Within a single list check only the first offending entry is
// reported.
package validation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/busybox42/lettera/internal/letter"
	"github.com/busybox42/lettera/internal/lookup"
)

// Operation selects which rule set Validate applies.
type Operation int

const (
	OpGet Operation = iota
	OpFind
	OpCreate
	OpUpdate
	OpDelete
	OpSearchParameters
)

// String returns the operation name for logging.
func (op Operation) String() string {
	switch op {
	case OpGet:
		return "get"
	case OpFind:
		return "find"
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	case OpSearchParameters:
		return "search-parameters"
	default:
		return fmt.Sprintf("operation(%d)", int(op))
	}
}

// Engine validates letter requests. The lookup collaborators are only
// consulted on create: applications must resolve in the registry, and a
// supplied template id is checked against the template service.
type Engine struct {
	registry  lookup.ApplicationRegistry
	templates lookup.TemplateService
	logger    *slog.Logger
}

// NewEngine creates a validation engine with the given collaborators.
func NewEngine(registry lookup.ApplicationRegistry, templates lookup.TemplateService, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default().With("component", "validation")
	}
	return &Engine{registry: registry, templates: templates, logger: logger}
}

// Validate applies the rule set for op to l and returns the accumulated
// field errors, empty when the request is acceptable.
func (e *Engine) Validate(ctx context.Context, op Operation, l *letter.Letter) []letter.FieldError {
	switch op {
	case OpGet, OpDelete, OpSearchParameters:
		if l == nil {
			return []letter.FieldError{{Field: FieldLetter, Message: msgMissing + FieldLetter}}
		}
		return e.ValidateID(l.ID)
	case OpFind:
		return e.validateFind(l)
	case OpCreate:
		return e.validateCreate(ctx, l)
	case OpUpdate:
		return e.validateUpdate(l)
	default:
		e.logger.Warn("unknown validation operation", "operation", int(op))
		return []letter.FieldError{{Field: FieldLetter, Message: "unknown operation"}}
	}
}

// ValidateID applies the identifier rules: the id must be present and must
// parse as an integer. The checks short-circuit, so an empty id reports one
// error, not two.
func (e *Engine) ValidateID(id string) []letter.FieldError {
	if isBlank(id) {
		return []letter.FieldError{{Field: FieldID, Message: msgMissing + FieldID}}
	}
	if !isNumericID(id) {
		return []letter.FieldError{{Field: FieldID, Message: msgIDNonNumeric}}
	}
	return nil
}

func (e *Engine) validateCreate(ctx context.Context, l *letter.Letter) []letter.FieldError {
	if l == nil {
		return []letter.FieldError{{Field: FieldLetter, Message: msgMissing + FieldLetter}}
	}

	var errs []letter.FieldError
	errs = append(errs, e.validateStatus(l)...)
	errs = append(errs, e.validateApplication(ctx, l.ApplicationID)...)
	errs = append(errs, validateContent(l)...)
	errs = append(errs, validateStatusUser(l)...)
	errs = append(errs, validateEmailInfo(l.EmailInfo, l.EffectiveStatus())...)
	errs = append(errs, validateSearchParameters(l.SearchParameters)...)
	errs = append(errs, e.validateTemplate(ctx, l.TemplateID)...)
	return errs
}

func (e *Engine) validateUpdate(l *letter.Letter) []letter.FieldError {
	if l == nil {
		return []letter.FieldError{{Field: FieldLetter, Message: msgMissing + FieldLetter}}
	}

	var errs []letter.FieldError
	if isBlank(l.ID) {
		errs = append(errs, letter.FieldError{Field: FieldID, Message: msgMissing + FieldID})
	} else if !isNumericID(l.ID) {
		errs = append(errs, letter.FieldError{Field: FieldID, Message: msgIDNonNumeric})
	}
	errs = append(errs, e.validateStatus(l)...)
	errs = append(errs, validateContent(l)...)
	errs = append(errs, validateStatusUser(l)...)
	errs = append(errs, validateEmailInfo(l.EmailInfo, l.EffectiveStatus())...)
	errs = append(errs, validateSearchParameters(l.SearchParameters)...)
	return errs
}

// validateFind applies the single-pair override for find-by-tag: exactly
// one search parameter, and its key and value must be non-blank.
func (e *Engine) validateFind(l *letter.Letter) []letter.FieldError {
	var params []letter.SearchParameter
	if l != nil {
		params = l.SearchParameters
	}

	if len(params) != 1 {
		return []letter.FieldError{{Field: FieldQueryParameters, Message: msgWrongTagCount}}
	}
	if isBlank(params[0].Key) || isBlank(params[0].Value) {
		return []letter.FieldError{{Field: FieldQueryParameters, Message: msgBadTagEntry}}
	}
	return nil
}

// validateStatus reports a missing or unparseable status and coerces the
// letter to Draft so the remaining rules still apply.
func (e *Engine) validateStatus(l *letter.Letter) []letter.FieldError {
	if l.Status == nil {
		l.Status = letter.StatusOf(letter.Draft)
		return []letter.FieldError{{Field: FieldStatus, Message: msgMissing + FieldStatus}}
	}
	if *l.Status == letter.Invalid {
		l.Status = letter.StatusOf(letter.Draft)
		return []letter.FieldError{{Field: FieldStatus, Message: msgInvalidStatus}}
	}
	return nil
}

// validateApplication checks the application id structurally and, only when
// it is well-formed, resolves it against the registry. A structurally bad
// id never triggers the external call.
func (e *Engine) validateApplication(ctx context.Context, applicationID string) []letter.FieldError {
	if isBlank(applicationID) {
		return []letter.FieldError{{Field: FieldApplicationID, Message: msgMissing + FieldApplicationID}}
	}
	if !isPositiveID(applicationID) {
		return []letter.FieldError{{Field: FieldApplicationID, Message: msgApplIDNonNumeric}}
	}

	info, err := e.registry.GetApplicationInfo(ctx, applicationID)
	if err != nil {
		e.logger.Error("application registry lookup failed", "applicationId", applicationID, "error", err)
		return []letter.FieldError{{Field: FieldApplicationID, Message: msgApplLookup + ": " + err.Error()}}
	}
	if info == nil {
		return []letter.FieldError{{Field: FieldApplicationID, Message: msgUnknownApplication + applicationID}}
	}
	return nil
}

func validateContent(l *letter.Letter) []letter.FieldError {
	status := l.EffectiveStatus()
	if status == letter.Draft && l.Content == nil {
		return []letter.FieldError{{Field: FieldContent, Message: msgMissingNull + FieldContent}}
	}
	if status == letter.Sent && (l.Content == nil || isBlank(*l.Content)) {
		return []letter.FieldError{{Field: FieldContent, Message: msgMissing + FieldContent}}
	}
	if l.Content != nil && !isEncodable(*l.Content) {
		return []letter.FieldError{{Field: FieldContent, Message: msgUnsupportedChars + FieldContent}}
	}
	return nil
}

func validateStatusUser(l *letter.Letter) []letter.FieldError {
	if isBlank(l.StatusUser) {
		return []letter.FieldError{{Field: FieldStatusUser, Message: msgMissing + FieldStatusUser}}
	}
	return nil
}

// validateEmailInfo applies the status-dependent addressing rules. A missing
// emailInfo is a single error that short-circuits every sub-field check.
func validateEmailInfo(info *letter.EmailInfo, status letter.Status) []letter.FieldError {
	if info == nil {
		return []letter.FieldError{{Field: FieldEmailInfo, Message: msgMissing + FieldEmailInfo}}
	}

	var errs []letter.FieldError

	switch status {
	case letter.Draft:
		if info.Subject == nil {
			errs = append(errs, letter.FieldError{Field: FieldSubject, Message: msgMissingNull + FieldSubject})
		} else if !isEncodable(*info.Subject) {
			errs = append(errs, letter.FieldError{Field: FieldSubject, Message: msgUnsupportedChars + FieldSubject})
		}
		if info.To == nil {
			errs = append(errs, letter.FieldError{Field: FieldTo, Message: msgMissingNull + FieldTo})
		}
	case letter.Sent:
		if info.Subject == nil || isBlank(*info.Subject) {
			errs = append(errs, letter.FieldError{Field: FieldSubject, Message: msgMissing + FieldSubject})
		} else if !isEncodable(*info.Subject) {
			errs = append(errs, letter.FieldError{Field: FieldSubject, Message: msgUnsupportedChars + FieldSubject})
		}
		if len(info.To) == 0 {
			errs = append(errs, letter.FieldError{Field: FieldTo, Message: msgMissing + FieldTo})
		}
	}

	if info.CC == nil {
		errs = append(errs, letter.FieldError{Field: FieldCC, Message: msgMissingNull + FieldCC})
	}
	if info.BCC == nil {
		errs = append(errs, letter.FieldError{Field: FieldBCC, Message: msgMissingNull + FieldBCC})
	}

	// Format before presence: a malformed sender reports the format error,
	// which also covers the empty case.
	if !isValidAddress(info.From) {
		errs = append(errs, letter.FieldError{Field: FieldFrom, Message: msgBadAddressFormat + FieldFrom})
	}

	errs = append(errs, validateAddressList(FieldTo, info.To)...)
	errs = append(errs, validateAddressList(FieldCC, info.CC)...)
	errs = append(errs, validateAddressList(FieldBCC, info.BCC)...)

	return errs
}

// validateTemplate consults the template service when a template id was
// supplied. The service's own field errors are merged in; a transport
// failure collapses to one synthetic error on the template field.
func (e *Engine) validateTemplate(ctx context.Context, templateID string) []letter.FieldError {
	if templateID == "" {
		return nil
	}

	templateErrs, err := e.templates.GetLetterTemplate(ctx, templateID)
	if err != nil {
		e.logger.Error("template lookup failed", "templateId", templateID, "error", err)
		return []letter.FieldError{{Field: FieldTemplateID, Message: msgTemplateLookup + ": " + err.Error()}}
	}
	return templateErrs
}
