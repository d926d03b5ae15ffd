package provider

import (
	"context"

	"schoolku_backend/internals/features/finance/payment_flows/model"
)

// Offline = rail tanpa PSP (tunai, transfer bank manual). Tidak ada network call dan tidak ada webhook.
type Offline struct {
	name string
}

func NewOffline(name string) *Offline { return &Offline{name: name} }

func NewCash() *Offline         { return NewOffline(model.ProviderCash) }
func NewBankTransfer() *Offline { return NewOffline(model.ProviderBankTransfer) }

func (o *Offline) Name() string        { return o.name }
func (o *Offline) Online() bool        { return false }
func (o *Offline) SupportsSplit() bool { return false }

func (o *Offline) Initiate(context.Context, InitiateRequest) (*InitiateResult, error) {
	return nil, ErrOperationNotSupported
}

func (o *Offline) VerifySignature(RawCallback) bool { return false }

func (o *Offline) ParseCallback(RawCallback) (*CallbackEvent, error) {
	return nil, ErrOperationNotSupported
}

func (o *Offline) QueryStatus(context.Context, string) (*StatusResult, error) {
	return nil, ErrOperationNotSupported
}
