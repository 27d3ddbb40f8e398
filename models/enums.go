package models

import (
	"encoding/json"
	"errors"
	"strings"
)

type SyncSchedule string

const (
	SyncScheduleDaily       SyncSchedule = "Daily"
	SyncScheduleWeekly      SyncSchedule = "Weekly"
	SyncScheduleMonthly     SyncSchedule = "Monthly"
	SyncScheduleQuarterly   SyncSchedule = "Quarterly"
	SyncScheduleAfterSubmit SyncSchedule = "After Submit"
)

var syncSchedules = map[string]SyncSchedule{
	"Daily":        SyncScheduleDaily,
	"Weekly":       SyncScheduleWeekly,
	"Monthly":      SyncScheduleMonthly,
	"Quarterly":    SyncScheduleQuarterly,
	"After Submit": SyncScheduleAfterSubmit,
}

func ParseSyncSchedule(str string) (SyncSchedule, error) {
	s, ok := syncSchedules[strings.TrimSpace(str)]
	if !ok {
		return "", errors.New("invalid sync schedule")
	}
	return s, nil
}

func (s *SyncSchedule) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("sync schedule must be string")
	}
	parsed, err := ParseSyncSchedule(str)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// IntervalDays is the minimum number of calendar days between two scheduled
// runs. Zero means every trigger runs.
func (s SyncSchedule) IntervalDays() int {
	switch s {
	case SyncScheduleWeekly:
		return 7
	case SyncScheduleMonthly:
		return 30
	case SyncScheduleQuarterly:
		return 90
	default:
		return 0
	}
}

type VatInvoiceStatus string

const (
	VatInvoiceStatusPending      VatInvoiceStatus = "Pending"
	VatInvoiceStatusSyncing      VatInvoiceStatus = "Syncing"
	VatInvoiceStatusSynced       VatInvoiceStatus = "Synced"
	VatInvoiceStatusFailed       VatInvoiceStatus = "Failed"
	VatInvoiceStatusReturn       VatInvoiceStatus = "Return"
	VatInvoiceStatusPartlyReturn VatInvoiceStatus = "Partly Return"
)

var vatInvoiceTransitions = map[VatInvoiceStatus][]VatInvoiceStatus{
	VatInvoiceStatusPending:      {VatInvoiceStatusSyncing, VatInvoiceStatusReturn, VatInvoiceStatusPartlyReturn, VatInvoiceStatusFailed},
	VatInvoiceStatusFailed:       {VatInvoiceStatusSyncing, VatInvoiceStatusPending},
	VatInvoiceStatusSyncing:      {VatInvoiceStatusSynced, VatInvoiceStatusFailed, VatInvoiceStatusReturn, VatInvoiceStatusPartlyReturn},
	VatInvoiceStatusSynced:       {VatInvoiceStatusPending, VatInvoiceStatusReturn, VatInvoiceStatusPartlyReturn, VatInvoiceStatusFailed},
	VatInvoiceStatusReturn:       {VatInvoiceStatusPending},
	VatInvoiceStatusPartlyReturn: {VatInvoiceStatusPending},
}

// CanTransitionTo reports whether the invoice state machine allows s -> next.
// Staying in the same state is always allowed.
func (s VatInvoiceStatus) CanTransitionTo(next VatInvoiceStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range vatInvoiceTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsRetryable is true for the states the scheduler picks up.
func (s VatInvoiceStatus) IsRetryable() bool {
	return s == VatInvoiceStatusPending || s == VatInvoiceStatusFailed
}

type DocStatus string

const (
	DocStatusDraft     DocStatus = "Draft"
	DocStatusSubmitted DocStatus = "Submitted"
)

const (
	PosTransactionStatusPaid   = "Paid"
	PosTransactionStatusReturn = "Return"
)
