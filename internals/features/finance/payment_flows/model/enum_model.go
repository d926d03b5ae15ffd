package model

import "strings"

type FlowType string
type Destination string
type FlowStatus string
type CallbackOutcome string
type CallbackSource string

const (
	FlowTypeSaaS    FlowType = "SAAS"
	FlowTypeTuition FlowType = "TUITION"
)

const (
	DestinationAcademia Destination = "ACADEMIA" // rekening platform
	DestinationSchool   Destination = "SCHOOL"   // rekening sekolah (split di PSP)
)

const (
	FlowStatusInitiated FlowStatus = "INITIATED"
	FlowStatusPending   FlowStatus = "PENDING"
	FlowStatusPaid      FlowStatus = "PAID"
	FlowStatusFailed    FlowStatus = "FAILED"
	FlowStatusCancelled FlowStatus = "CANCELLED"
	FlowStatusRefunded  FlowStatus = "REFUNDED"
)

// Provider identifiers (mirror kolom payment_flow_provider / payout_account_provider)
const (
	ProviderOnlinePSP    = "ONLINE_PSP"
	ProviderMidtrans     = "MIDTRANS"
	ProviderCash         = "CASH"
	ProviderBankTransfer = "BANK_TRANSFER"
)

const (
	CallbackOutcomeApplied   CallbackOutcome = "applied"
	CallbackOutcomeDuplicate CallbackOutcome = "duplicate"
	CallbackOutcomeStale     CallbackOutcome = "stale"
	CallbackOutcomeUnmatched CallbackOutcome = "unmatched"
)

const (
	CallbackSourceWebhook CallbackSource = "webhook"
	CallbackSourcePoll    CallbackSource = "poll"
)

// ParseFlowType menormalkan input (case-insensitive). ok=false kalau bukan SAAS/TUITION.
func ParseFlowType(s string) (FlowType, bool) {
	switch FlowType(strings.ToUpper(strings.TrimSpace(s))) {
	case FlowTypeSaaS:
		return FlowTypeSaaS, true
	case FlowTypeTuition:
		return FlowTypeTuition, true
	}
	return "", false
}

// DestinationFor adalah satu-satunya tempat destination ditentukan.
func DestinationFor(t FlowType) (Destination, bool) {
	switch t {
	case FlowTypeSaaS:
		return DestinationAcademia, true
	case FlowTypeTuition:
		return DestinationSchool, true
	}
	return "", false
}

/* ===================== State machine ===================== */

var allowedTransitions = map[FlowStatus][]FlowStatus{
	FlowStatusInitiated: {FlowStatusPending, FlowStatusPaid, FlowStatusFailed, FlowStatusCancelled},
	FlowStatusPending:   {FlowStatusPaid, FlowStatusFailed, FlowStatusCancelled},
	FlowStatusPaid:      {FlowStatusRefunded},
}

// CanTransition reports whether from→to is a real move. from==to is never a transition.
func CanTransition(from, to FlowStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s FlowStatus) IsTerminal() bool {
	switch s {
	case FlowStatusFailed, FlowStatusCancelled, FlowStatusRefunded:
		return true
	}
	return false
}

func (s FlowStatus) IsOpen() bool {
	return s == FlowStatusInitiated || s == FlowStatusPending
}
