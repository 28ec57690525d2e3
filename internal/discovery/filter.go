// Package discovery computes "people you may know": every known user the viewer has no
// relationship with yet, in the order the directory listed them.
package discovery

import (
	"iter"
	"slices"
	"sync"

	"github.com/locolive/proconnect/internal/domain"
)

// StatusSource is the read side of the graph repository the filter needs
type StatusSource interface {
	RelationshipStatus(viewer, other domain.UserID) domain.RelationshipStatus
	Version() uint64
}

// Suggestions yields the users of allUsers that are not viewer and whose status with viewer
// is none. The sequence is lazy and can be ranged over any number of times; each pass reads
// the repository as it is at that moment.
func Suggestions(allUsers []domain.UserRef, viewer domain.UserID, repo StatusSource) iter.Seq[domain.UserRef] {
	return func(yield func(domain.UserRef) bool) {
		for _, u := range allUsers {
			if u.ID == viewer || repo.RelationshipStatus(viewer, u.ID) != domain.StatusNone {
				continue
			}
			if !yield(u) {
				return
			}
		}
	}
}

// Top collects at most n users from seq
func Top(seq iter.Seq[domain.UserRef], n int) []domain.UserRef {
	out := make([]domain.UserRef, 0, n)
	if n <= 0 {
		return out
	}
	for u := range seq {
		out = append(out, u)
		if len(out) == n {
			break
		}
	}
	return out
}

// Filter adds dismissed suggestions and result caching on top of Suggestions.
// The cached list is rebuilt whenever the repository version, the directory or the
// dismissed set changes.
type Filter struct {
	viewer domain.UserID
	repo   StatusSource

	mu        sync.Mutex
	users     []domain.UserRef
	dismissed map[domain.UserID]struct{}

	// gen changes whenever users or dismissed change
	gen        uint64
	cached     []domain.UserRef
	cachedGen  uint64
	cachedAt   uint64
	cacheValid bool
}

func NewFilter(viewer domain.UserID, repo StatusSource) *Filter {
	return &Filter{
		viewer:    viewer,
		repo:      repo,
		dismissed: make(map[domain.UserID]struct{}),
	}
}

// SetUsers replaces the directory the suggestions are drawn from
func (f *Filter) SetUsers(users []domain.UserRef) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = slices.Clone(users)
	f.gen++
}

// Dismiss hides a user from suggestions until Undismiss
func (f *Filter) Dismiss(id domain.UserID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dismissed[id] = struct{}{}
	f.gen++
}

func (f *Filter) Undismiss(id domain.UserID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.dismissed, id)
	f.gen++
}

// Dismissed lists the hidden user ids in ascending order
func (f *Filter) Dismissed() []domain.UserID {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.UserID, 0, len(f.dismissed))
	for id := range f.dismissed {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Seq is the lazy form: Suggestions minus dismissed users
func (f *Filter) Seq() iter.Seq[domain.UserRef] {
	f.mu.Lock()
	users := f.users
	dismissed := make(map[domain.UserID]struct{}, len(f.dismissed))
	for id := range f.dismissed {
		dismissed[id] = struct{}{}
	}
	f.mu.Unlock()

	base := Suggestions(users, f.viewer, f.repo)
	return func(yield func(domain.UserRef) bool) {
		for u := range base {
			if _, hidden := dismissed[u.ID]; hidden {
				continue
			}
			if !yield(u) {
				return
			}
		}
	}
}

// List returns the current suggestions, recomputing only when something they depend on changed
func (f *Filter) List() []domain.UserRef {
	version := f.repo.Version()

	f.mu.Lock()
	if f.cacheValid && f.cachedAt == version && f.cachedGen == f.gen {
		out := slices.Clone(f.cached)
		f.mu.Unlock()
		return out
	}
	gen := f.gen
	f.mu.Unlock()

	list := slices.Collect(f.Seq())

	f.mu.Lock()
	if f.gen == gen {
		f.cached = list
		f.cachedAt = version
		f.cachedGen = gen
		f.cacheValid = true
	}
	f.mu.Unlock()
	return slices.Clone(list)
}
