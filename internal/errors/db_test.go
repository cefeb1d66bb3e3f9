package errors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestMapDBError_NilError(t *testing.T) {
	if err := MapDBError(nil); err != nil {
		t.Errorf("MapDBError(nil) = %v, want nil", err)
	}
}

func TestMapDBError_ContextErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode ErrorCode
	}{
		{name: "deadline exceeded", err: context.DeadlineExceeded, wantCode: ErrCodeTimeout},
		{name: "canceled", err: context.Canceled, wantCode: ErrCodeCanceled},
		{name: "wrapped deadline", err: fmt.Errorf("query: %w", context.DeadlineExceeded), wantCode: ErrCodeTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code := GetCode(MapDBError(tt.err)); code != tt.wantCode {
				t.Errorf("MapDBError() code = %v, want %v", code, tt.wantCode)
			}
		})
	}
}

func TestMapDBError_NoRows(t *testing.T) {
	for _, err := range []error{sql.ErrNoRows, pgx.ErrNoRows} {
		if mapped := MapDBError(err); !IsNotFound(mapped) {
			t.Errorf("MapDBError(%v) should be NotFound, got %v", err, GetCode(mapped))
		}
	}
}

func TestMapDBError_PgErrors(t *testing.T) {
	tests := []struct {
		name      string
		pgErr     *pgconn.PgError
		wantCode  ErrorCode
		wantField string
	}{
		{
			name: "unique violation with Detail message",
			pgErr: &pgconn.PgError{
				Code:           pgerrcode.UniqueViolation,
				ConstraintName: "posts_current_job_id_key",
				Detail:         `Key (current_job_id)=(j1) already exists.`,
			},
			wantCode:  ErrCodeConflict,
			wantField: "current_job_id",
		},
		{
			name:      "unique violation inferred from constraint",
			pgErr:     &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "posts_id_key"},
			wantCode:  ErrCodeConflict,
			wantField: "id",
		},
		{
			name:      "check violation",
			pgErr:     &pgconn.PgError{Code: pgerrcode.CheckViolation, ColumnName: "media_type"},
			wantCode:  ErrCodeValidation,
			wantField: "media_type",
		},
		{
			name:     "serialization failure",
			pgErr:    &pgconn.PgError{Code: pgerrcode.SerializationFailure},
			wantCode: ErrCodeConflict,
		},
		{
			name:     "unhandled code",
			pgErr:    &pgconn.PgError{Code: pgerrcode.DiskFull},
			wantCode: ErrCodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapDBError(tt.pgErr)
			if GetCode(err) != tt.wantCode {
				t.Errorf("MapDBError() code = %v, want %v", GetCode(err), tt.wantCode)
			}
			if GetField(err) != tt.wantField {
				t.Errorf("MapDBError() field = %q, want %q", GetField(err), tt.wantField)
			}
			var pgErr *pgconn.PgError
			if !errors.As(err, &pgErr) {
				t.Error("mapped error should wrap the original PgError")
			}
		})
	}
}

func TestMapDBError_PassThrough(t *testing.T) {
	orig := errors.New("some other failure")
	if err := MapDBError(orig); !errors.Is(err, orig) || GetCode(err) != "" {
		t.Errorf("MapDBError() = %v, want original error unchanged", err)
	}
}
