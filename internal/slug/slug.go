package slug

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/TristanBaldazzi/nicolas-crm-sub000/internal/textfold"
)

// DefaultMaxAttempts bounds the numeric suffix search before falling back to a time suffix
const DefaultMaxAttempts = 1000

// fallbackBase is used when a name has no usable characters
const fallbackBase = "product"

var invalidRun = regexp.MustCompile(`[^a-z0-9]+`)

// Checker reports whether a slug is already taken for a tenant
type Checker interface {
	SlugExists(ctx context.Context, tenantID, slug string) (bool, error)
}

// Slugify transliterates a name to [a-z0-9-]. Latin accents are folded and
// Cyrillic and Greek letters are romanized. Other scripts (CJK, Arabic,
// Hebrew, ...) have no mapping and reduce to "product", which the allocator
// then suffixes.
func Slugify(name string) string {
	s := textfold.Fold(translit.Replace(strings.ToLower(name)))
	s = strings.ToLower(s)
	s = invalidRun.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return fallbackBase
	}
	return s
}

// Allocator hands out slugs that are free at the time of the check.
//
// Allocate is check-then-act: two concurrent calls for the same base name can
// both observe the same free slug. The products table carries a unique index on
// (tenant_id, slug) and callers are expected to re-allocate when the insert
// reports a duplicate.
type Allocator struct {
	store       Checker
	maxAttempts int
	now         func() time.Time
	logger      *logrus.Entry
}

// NewAllocator creates a new slug allocator
func NewAllocator(store Checker, maxAttempts int, logger *logrus.Entry) *Allocator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Allocator{
		store:       store,
		maxAttempts: maxAttempts,
		now:         time.Now,
		logger:      logger.WithField("component", "slug_allocator"),
	}
}

// Allocate returns a slug for name that is not yet used by the tenant.
// It never fails: when the suffix search is exhausted or the store errors,
// it falls back to a time-based suffix.
func (a *Allocator) Allocate(ctx context.Context, tenantID, name string) string {
	base := Slugify(name)

	for attempt := 0; attempt <= a.maxAttempts; attempt++ {
		candidate := base
		if attempt > 0 {
			candidate = fmt.Sprintf("%s-%d", base, attempt)
		}

		taken, err := a.store.SlugExists(ctx, tenantID, candidate)
		if err != nil {
			a.logger.WithError(err).WithFields(logrus.Fields{
				"tenantID": tenantID,
				"slug":     candidate,
			}).Warn("Slug lookup failed, using time-based suffix")
			return a.timeSuffixed(base)
		}
		if !taken {
			return candidate
		}
	}

	a.logger.WithFields(logrus.Fields{
		"tenantID": tenantID,
		"base":     base,
		"attempts": a.maxAttempts,
	}).Warn("Slug suffixes exhausted, using time-based suffix")
	return a.timeSuffixed(base)
}

func (a *Allocator) timeSuffixed(base string) string {
	return fmt.Sprintf("%s-%d", base, a.now().UnixNano())
}
