package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func TestTranslate(t *testing.T) {
	cases := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"record not found", gorm.ErrRecordNotFound, ErrNotFound},
		{"translated duplicate", gorm.ErrDuplicatedKey, ErrDuplicate},
		{"pg unique violation", &pgconn.PgError{Code: "23505", ConstraintName: "uq_payment_flows_provider_ref"}, ErrDuplicate},
		{"wrapped pg unique violation", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), ErrDuplicate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := translate(tc.in); !errors.Is(got, tc.want) && got != tc.want {
				t.Fatalf("translate(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestTranslateKeepsOtherErrors(t *testing.T) {
	others := []error{
		&pgconn.PgError{Code: "23503", Message: "violates foreign key constraint"},
		errors.New(`duplicate entry in upstream response`),
		errors.New(`value violates unique constraint text from a proxy`),
	}
	for _, in := range others {
		if got := translate(in); got != in {
			t.Fatalf("translate(%v) = %v, want unchanged", in, got)
		}
	}
}
