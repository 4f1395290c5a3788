package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel/trace"

	market "github.com/fd1az/prediction-amm/business/market/domain"
	"github.com/fd1az/prediction-amm/internal/apperror"
	"github.com/fd1az/prediction-amm/internal/asset"
)

// accountHeader carries the caller identity in place of a signature.
const accountHeader = "X-Account"

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// fail renders err as an apperror response. Unknown errors become 500s.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		appErr = apperror.Internal(apperror.CodeInternalError, "unhandled error", err)
	}
	if sc := trace.SpanContextFromContext(r.Context()); sc.HasTraceID() {
		appErr.WithTraceID(sc.TraceID().String())
	}

	if appErr.StatusCode >= http.StatusInternalServerError {
		s.log.Error(r.Context(), "request failed", append([]any{"path", r.URL.Path}, appErr.LogAttrs()...)...)
	}
	writeJSON(w, appErr.StatusCode, appErr.ToResponse())
}

func invalid(format string, args ...any) error {
	return apperror.New(apperror.CodeInvalidInput, apperror.WithContext(fmt.Sprintf(format, args...)))
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return invalid("malformed body: %v", err)
	}
	return nil
}

// caller returns the account named by the X-Account header.
func caller(r *http.Request) (common.Address, error) {
	v := strings.TrimSpace(r.Header.Get(accountHeader))
	if v == "" {
		return common.Address{}, apperror.New(apperror.CodeUnauthorized,
			apperror.WithContext(accountHeader+" header required"),
			apperror.WithStatusCode(http.StatusUnauthorized))
	}
	return parseAddress(accountHeader, v)
}

func parseAddress(field, v string) (common.Address, error) {
	if !common.IsHexAddress(v) {
		return common.Address{}, invalid("%s: %q is not an address", field, v)
	}
	addr := common.HexToAddress(v)
	if addr == (common.Address{}) {
		return common.Address{}, invalid("%s: zero address", field)
	}
	return addr, nil
}

func marketID(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, invalid("market id %q", r.PathValue("id"))
	}
	return id, nil
}

// parseAmount reads a decimal amount in whole units. Empty is nil when
// optional, an error otherwise.
func parseAmount(field, v string, required bool) (*uint256.Int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		if required {
			return nil, apperror.New(apperror.CodeRequiredField, apperror.WithContext(field))
		}
		return nil, nil
	}
	amount, err := asset.ParseUnits(v)
	if err != nil {
		return nil, invalid("%s: %v", field, err)
	}
	return amount, nil
}

func parseOutcome(v string) (market.Outcome, error) {
	o, err := market.ParseOutcome(v)
	if err != nil {
		return market.Unresolved, invalid("outcome: %v", err)
	}
	return o, nil
}

// units renders a fixed-point amount as a decimal string in whole units.
func units(v *uint256.Int) string {
	return asset.ToDecimal(v).String()
}
