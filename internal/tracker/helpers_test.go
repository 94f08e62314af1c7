package tracker

import (
	"context"
	"testing"

	"github.com/mesh-intelligence/unhitch/pkg/types"
	"github.com/stretchr/testify/require"
)

type author struct {
	AuthorID string  `json:"author_id"`
	Name     string  `json:"name" validate:"required"`
	Books    []*book `json:"-" validate:"-"`
}

type book struct {
	BookID   string  `json:"book_id"`
	Title    string  `json:"title" validate:"required"`
	AuthorID string  `json:"author_id"`
	Author   *author `json:"-" validate:"-"`
}

// memStore records applied changesets.
type memStore struct {
	applied []types.Changeset
	err     error
}

func (s *memStore) Apply(_ context.Context, changes types.Changeset) error {
	if s.err != nil {
		return s.err
	}
	s.applied = append(s.applied, changes)
	return nil
}

// newLibraryModel registers author and book with an Author back-reference
// and a Books collection. loadBooks may be nil.
func newLibraryModel(t *testing.T, loadBooks LoadFunc) *Model {
	t.Helper()
	m := NewModel()
	require.NoError(t, m.Register(&author{}, "authors", "AuthorID"))
	require.NoError(t, m.Register(&book{}, "books", "BookID"))
	require.NoError(t, m.HasMany(&author{}, "Books", loadBooks))
	require.NoError(t, m.HasOne(&book{}, "Author", nil))
	return m
}
