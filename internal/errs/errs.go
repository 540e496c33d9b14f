package errs

import "errors"

var ErrInvalidRate = errors.New("rate must be a positive finite number")
var ErrNoChanges = errors.New("amendment contains no changes")
var ErrUnreconciledAmendment = errors.New("amendment totals do not match order amounts")
var ErrOrderNotFound = errors.New("order not found")
var ErrEntryNotFound = errors.New("ledger entry not found")
var ErrAmendmentNotFound = errors.New("amendment not found")
var ErrAmendmentClosed = errors.New("amendment already applied or discarded")
var ErrOrderNotCompletable = errors.New("order cannot transition to completed from its current status")
