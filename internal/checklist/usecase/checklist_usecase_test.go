package usecase

import (
	"testing"

	"schoolcomms-backend/internal/comm/domain"
	"schoolcomms-backend/internal/comm/repository"
	"schoolcomms-backend/internal/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChecklistFixture(t *testing.T) *ChecklistUsecase {
	t.Helper()
	db, err := database.OpenSQLite(":memory:", nil)
	require.NoError(t, err)
	return NewChecklistUsecase(db, repository.NewChecklistRepository(db), nil, nil)
}

func itemTexts(t *testing.T, uc *ChecklistUsecase, category string) []string {
	t.Helper()
	items, err := uc.Items(category)
	require.NoError(t, err)
	texts := make([]string, 0, len(items))
	for _, item := range items {
		texts = append(texts, item.ItemText)
	}
	return texts
}

func TestSyncInsertsNewItemsUnchecked(t *testing.T) {
	uc := newChecklistFixture(t)

	err := uc.SyncItemsFromSummary(domain.CategoryActionItems, []string{
		"Pay $15 activity fee by Feb 10",
		"Sign the permission slip for the zoo trip",
	})
	require.NoError(t, err)

	items, err := uc.Items(domain.CategoryActionItems)
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, item := range items {
		assert.False(t, item.IsChecked)
		assert.NotEmpty(t, item.SourceDate)
	}

	// the fee deadline carries a recognizable date
	require.NotNil(t, items[0].EventDate)
	assert.Equal(t, 10, items[0].EventDate.Day())
	assert.Nil(t, items[1].EventDate)
}

func TestSyncIsIdempotent(t *testing.T) {
	uc := newChecklistFixture(t)
	texts := []string{"Pay $15 activity fee by Feb 10", "Bring rain boots on Monday"}

	require.NoError(t, uc.SyncItemsFromSummary(domain.CategoryActionItems, texts))
	first, err := uc.Items(domain.CategoryActionItems)
	require.NoError(t, err)

	require.NoError(t, uc.SyncItemsFromSummary(domain.CategoryActionItems, texts))
	second, err := uc.Items(domain.CategoryActionItems)
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID, "rerun keeps row identity")
	}
}

func TestRewordedItemKeepsIdentityAndCheckedState(t *testing.T) {
	uc := newChecklistFixture(t)

	require.NoError(t, uc.SyncItemsFromSummary(domain.CategoryActionItems, []string{
		"Sign the permission slip for the zoo trip",
	}))
	items, err := uc.Items(domain.CategoryActionItems)
	require.NoError(t, err)
	require.Len(t, items, 1)

	checked, err := uc.Toggle(items[0].ID)
	require.NoError(t, err)
	require.True(t, checked.IsChecked)

	// the model drops an article; the row survives with its checkmark
	require.NoError(t, uc.SyncItemsFromSummary(domain.CategoryActionItems, []string{
		"Sign permission slip for the zoo trip",
	}))
	items, err = uc.Items(domain.CategoryActionItems)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, checked.ID, items[0].ID)
	assert.Equal(t, "Sign permission slip for the zoo trip", items[0].ItemText)
	assert.True(t, items[0].IsChecked)
	assert.NotNil(t, items[0].CheckedAt)
}

func TestVanishedUncheckedItemsRemovedCheckedKept(t *testing.T) {
	uc := newChecklistFixture(t)

	require.NoError(t, uc.SyncItemsFromSummary(domain.CategoryKeyDates, []string{
		"Picture day Feb 20",
		"Bake sale Feb 28",
	}))
	items, err := uc.Items(domain.CategoryKeyDates)
	require.NoError(t, err)
	require.Len(t, items, 2)

	_, err = uc.Toggle(items[0].ID)
	require.NoError(t, err)

	// both lines age out of the rolling window
	require.NoError(t, uc.SyncItemsFromSummary(domain.CategoryKeyDates, nil))

	remaining, err := uc.Items(domain.CategoryKeyDates)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, items[0].ID, remaining[0].ID)
	assert.True(t, remaining[0].IsChecked)
}

func TestUnrelatedLineBecomesNewRow(t *testing.T) {
	uc := newChecklistFixture(t)

	require.NoError(t, uc.SyncItemsFromSummary(domain.CategoryActionItems, []string{
		"Pay $15 activity fee by Feb 10",
	}))
	require.NoError(t, uc.SyncItemsFromSummary(domain.CategoryActionItems, []string{
		"Pay $15 activity fee by Feb 10",
		"Return the library books",
	}))

	texts := itemTexts(t, uc, domain.CategoryActionItems)
	assert.ElementsMatch(t, []string{"Pay $15 activity fee by Feb 10", "Return the library books"}, texts)
}

func TestGreedyAssignmentPrefersExactMatch(t *testing.T) {
	uc := newChecklistFixture(t)

	require.NoError(t, uc.SyncItemsFromSummary(domain.CategoryActionItems, []string{
		"Sign the permission slip for the zoo trip",
	}))
	existing, err := uc.Items(domain.CategoryActionItems)
	require.NoError(t, err)
	require.Len(t, existing, 1)

	// both lines clear the threshold against the one row; the exact match
	// claims it and the variant becomes a new row
	require.NoError(t, uc.SyncItemsFromSummary(domain.CategoryActionItems, []string{
		"Sign permission slip for the zoo trip",
		"Sign the permission slip for the zoo trip",
	}))

	items, err := uc.Items(domain.CategoryActionItems)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, existing[0].ID, items[0].ID)
	assert.Equal(t, "Sign the permission slip for the zoo trip", items[0].ItemText)
	assert.Equal(t, "Sign permission slip for the zoo trip", items[1].ItemText)
}

func TestCategoriesAreIndependent(t *testing.T) {
	uc := newChecklistFixture(t)

	require.NoError(t, uc.SyncItemsFromSummary(domain.CategoryKeyDates, []string{"Picture day Feb 20"}))
	require.NoError(t, uc.SyncItemsFromSummary(domain.CategoryActionItems, []string{"Picture day Feb 20"}))

	// clearing one category leaves the identical text in the other
	require.NoError(t, uc.SyncItemsFromSummary(domain.CategoryKeyDates, nil))
	assert.Empty(t, itemTexts(t, uc, domain.CategoryKeyDates))
	assert.Len(t, itemTexts(t, uc, domain.CategoryActionItems), 1)
}

func TestToggleAndSetChecked(t *testing.T) {
	uc := newChecklistFixture(t)
	require.NoError(t, uc.SyncItemsFromSummary(domain.CategoryActionItems, []string{"Return the library books"}))
	items, err := uc.Items(domain.CategoryActionItems)
	require.NoError(t, err)
	id := items[0].ID

	item, err := uc.Toggle(id)
	require.NoError(t, err)
	assert.True(t, item.IsChecked)
	assert.NotNil(t, item.CheckedAt)

	item, err = uc.Toggle(id)
	require.NoError(t, err)
	assert.False(t, item.IsChecked)
	assert.Nil(t, item.CheckedAt)

	item, err = uc.SetChecked(id, true)
	require.NoError(t, err)
	assert.True(t, item.IsChecked)

	_, err = uc.Toggle(99999)
	assert.ErrorIs(t, err, ErrItemNotFound)
}
