package status

import (
	"context"
	"sort"
	"strings"

	"statuscore/pkg/domain"
)

// SearchEngine evaluates filter and text queries over the store's read path.
// Matching is a full scan with in-process filtering; the storage collaborator
// is only asked for the raw record set.
type SearchEngine struct {
	store *Store
}

// NewSearchEngine constructs a search engine over the store.
func NewSearchEngine(store *Store) *SearchEngine {
	return &SearchEngine{store: store}
}

// Search returns every status matching all supplied criteria. Exact-match
// filters AND with the optional case-insensitive substring text search.
// Results are ordered by last-updated date descending when a text search is
// present, otherwise by created date ascending. An empty result is valid.
func (e *SearchEngine) Search(ctx context.Context, criteria domain.SearchCriteria) ([]domain.Status, error) {
	ctx, done := e.store.observe(ctx, "search_statuses")
	out, err := e.search(ctx, criteria)
	done(err)
	return out, err
}

func (e *SearchEngine) search(ctx context.Context, criteria domain.SearchCriteria) ([]domain.Status, error) {
	records, err := e.store.scanAll(ctx)
	if err != nil {
		return nil, err
	}

	query := strings.ToLower(strings.TrimSpace(criteria.TextSearch))
	out := make([]domain.Status, 0, len(records))
	for _, rec := range records {
		if !matchesFilters(rec.Status, criteria) {
			continue
		}
		if query != "" && !matchesText(rec.Status, query) {
			continue
		}
		out = append(out, rec.Status)
	}

	if query != "" {
		sortByUpdatedDesc(out)
	} else {
		sortByCreatedAsc(out)
	}
	return out, nil
}

func matchesFilters(st domain.Status, c domain.SearchCriteria) bool {
	if c.ClientID != "" && st.ClientID != c.ClientID {
		return false
	}
	if c.AdvisorID != "" && st.AdvisorID != c.AdvisorID {
		return false
	}
	if c.StatusType != "" && st.StatusType != c.StatusType {
		return false
	}
	if c.Priority != "" && st.Priority != c.Priority {
		return false
	}
	if c.Category != "" && st.Category != c.Category {
		return false
	}
	return true
}

func matchesText(st domain.Status, query string) bool {
	if containsFold(st.StatusSummary, query) ||
		containsFold(st.Category, query) ||
		containsFold(st.SubCategory, query) {
		return true
	}
	for _, v := range st.Tags {
		if containsFold(v, query) {
			return true
		}
	}
	for _, action := range st.RequiredActions {
		if containsFold(action, query) {
			return true
		}
	}
	for _, action := range st.CompletedActions {
		if containsFold(action, query) {
			return true
		}
	}
	return false
}

// containsFold reports whether query (already lowercased) is a substring of s
// ignoring case.
func containsFold(s, query string) bool {
	return strings.Contains(strings.ToLower(s), query)
}

func sortByUpdatedDesc(statuses []domain.Status) {
	sort.SliceStable(statuses, func(i, j int) bool {
		if statuses[i].LastUpdatedDate.Equal(statuses[j].LastUpdatedDate) {
			return statuses[i].StatusID < statuses[j].StatusID
		}
		return statuses[i].LastUpdatedDate.After(statuses[j].LastUpdatedDate)
	})
}
