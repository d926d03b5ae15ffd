package service

import (
	"strings"

	"schoolku_backend/internals/features/finance/payment_flows/model"
)

// status sintetis yang dipakai sweeper untuk checkout kedaluwarsa
const providerStatusExpired = "EXPIRED"

var providerStatusTable = map[string]model.FlowStatus{
	"APPROVED":  model.FlowStatusPaid,
	"SUCCESS":   model.FlowStatusPaid,
	"PAID":      model.FlowStatusPaid,
	"PENDING":   model.FlowStatusPending,
	"FAILED":    model.FlowStatusFailed,
	"REJECTED":  model.FlowStatusFailed,
	"CANCELLED": model.FlowStatusCancelled,
	"CANCELED":  model.FlowStatusCancelled,
	"EXPIRED":   model.FlowStatusCancelled,
}

// MapProviderStatus: total. Status yang tidak dikenal → PENDING (jangan pernah menebak PAID/FAILED).
func MapProviderStatus(s string) model.FlowStatus {
	if st, ok := providerStatusTable[strings.ToUpper(strings.TrimSpace(s))]; ok {
		return st
	}
	return model.FlowStatusPending
}
