package documents

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// SequencePort exposes the single read the allocator needs: the most
// recently created document number for a (tenant, type) pair.
type SequencePort interface {
	LatestNumber(ctx context.Context, tenantID uuid.UUID, docType Type) (string, error)
}

// Allocator derives the next human-readable document number. Two concurrent
// saves for the same tenant and type can race to the same number; the unique
// index on documents surfaces that as ErrNumberConflict and Save retries the
// allocation once.
type Allocator struct {
	repo SequencePort
}

// NewAllocator constructs an Allocator.
func NewAllocator(repo SequencePort) *Allocator {
	return &Allocator{repo: repo}
}

// NextNumber returns "<PREFIX><8-digit zero-padded sequence>": the last
// persisted number incremented by one, or the first number of the series
// when no prior document exists.
func (a *Allocator) NextNumber(ctx context.Context, tenantID uuid.UUID, docType Type) (string, error) {
	if !docType.Valid() {
		return "", fmt.Errorf("documents: unknown document type %q", docType)
	}
	prefix := docType.Prefix()
	last, err := a.repo.LatestNumber(ctx, tenantID, docType)
	if errors.Is(err, ErrNoDocuments) {
		return formatNumber(prefix, 1), nil
	}
	if err != nil {
		return "", fmt.Errorf("documents: latest number: %w", err)
	}
	seq, err := parseNumber(prefix, last)
	if err != nil {
		return "", err
	}
	return formatNumber(prefix, seq+1), nil
}

func formatNumber(prefix string, seq int64) string {
	return fmt.Sprintf("%s%08d", prefix, seq)
}

func parseNumber(prefix, number string) (int64, error) {
	suffix := strings.TrimPrefix(number, prefix)
	seq, err := strconv.ParseInt(suffix, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("documents: malformed document number %q: %w", number, err)
	}
	return seq, nil
}
