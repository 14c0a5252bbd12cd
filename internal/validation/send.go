package validation

import (
	"github.com/busybox42/lettera/internal/letter"
)

// ValidateSend applies the send-mode rules. Sends never touch storage, so
// the rules here are independent of the persistence validators: presence
// checks use the raw string (no trimming), and every recipient list in the
// request, including the send metadata lists, is screened.
func (e *Engine) ValidateSend(req *letter.SendRequest) []letter.FieldError {
	if req == nil {
		return []letter.FieldError{{Field: FieldSendRequest, Message: msgMissing + FieldSendRequest}}
	}
	if req.Letter == nil {
		return []letter.FieldError{{Field: FieldLetter, Message: msgSendMissingLetter}}
	}
	if req.Letter.EmailInfo == nil {
		return []letter.FieldError{{Field: FieldEmailInfo, Message: msgSendMissingInfo}}
	}

	l := req.Letter
	info := l.EmailInfo
	var errs []letter.FieldError

	if l.ContentString() == "" {
		errs = append(errs, letter.FieldError{Field: FieldSendContent, Message: msgSendMissingBody})
	}
	if info.SubjectString() == "" {
		errs = append(errs, letter.FieldError{Field: FieldSendSubject, Message: msgSendMissingSubject})
	}
	if info.From == "" {
		errs = append(errs, letter.FieldError{Field: FieldSendFrom, Message: msgSendMissingSender})
	} else if !isValidAddress(info.From) {
		errs = append(errs, letter.FieldError{Field: FieldSendFrom, Message: msgSendBadAddress})
	}
	if len(info.To) == 0 {
		errs = append(errs, letter.FieldError{Field: FieldSendTo, Message: msgSendMissingTo})
	}

	errs = append(errs, validateSendList(FieldSendTo, info.To)...)
	errs = append(errs, validateSendList(FieldSendCC, info.CC)...)
	errs = append(errs, validateSendList(FieldSendBCC, info.BCC)...)

	if req.MetaData != nil {
		errs = append(errs, validateSendList(FieldDebugRecipients, req.MetaData.DebugRecipients)...)
		errs = append(errs, validateSendList(FieldDefaultBCC, req.MetaData.DefaultBCCRecipients)...)
		errs = append(errs, validateSendList(FieldProdSupport, req.MetaData.ProdSupportRecipients)...)
	}

	return errs
}

// validateSendList screens one recipient list. An empty-string entry
// anywhere in the list wins over format problems and short-circuits them;
// otherwise the first malformed address yields the list's single error.
func validateSendList(field string, list []string) []letter.FieldError {
	if len(list) == 0 {
		return nil
	}

	for _, addr := range list {
		if addr == "" {
			return []letter.FieldError{{Field: field, Message: msgSendEmptyString}}
		}
	}
	for _, addr := range list {
		if !isValidAddress(addr) {
			return []letter.FieldError{{Field: field, Message: msgSendBadAddress}}
		}
	}
	return nil
}
