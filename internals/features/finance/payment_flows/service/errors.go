package service

import "errors"

var (
	ErrInvalidFlowType     = errors.New("flow_type harus SAAS atau TUITION")
	ErrInvalidAmount       = errors.New("amount tidak boleh negatif")
	ErrMissingStudent      = errors.New("student_id wajib untuk flow TUITION")
	ErrPrerequisiteNotMet  = errors.New("sekolah belum punya payout account aktif & terverifikasi untuk provider ini")
	ErrUnsupportedProvider = errors.New("provider tidak dikenal")
	ErrSplitUnsupported    = errors.New("provider tidak mendukung split ke rekening sekolah")

	ErrDuplicateActiveAccount = errors.New("sudah ada payout account aktif & terverifikasi untuk provider ini")
	ErrDuplicateAccount       = errors.New("payout account dengan identifier ini sudah terdaftar")
	ErrAccountNotFound        = errors.New("payout account tidak ditemukan")
	ErrAccountInactive        = errors.New("payout account tidak aktif")

	ErrFlowNotFound      = errors.New("payment flow tidak ditemukan")
	ErrInvalidSignature  = errors.New("signature callback tidak valid")
	ErrMalformedCallback = errors.New("payload callback tidak valid")

	// ErrConcurrentUpdate: transient; provider boleh kirim ulang.
	ErrConcurrentUpdate = errors.New("status flow berubah bersamaan, coba lagi")
)
